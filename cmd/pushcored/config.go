package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nexusgds/pushcore/pkg/log"
	"gopkg.in/yaml.v3"
)

// groupConfig describes one certificate group's on-disk store.
type groupConfig struct {
	Group string `yaml:"group"`
	// PKIRoot is the directory this group's certstore.FileStore is
	// rooted at. Each group gets its own subtree so ApplCerts,
	// HttpCerts, and UserTokenCerts never share a directory.
	PKIRoot string `yaml:"pkiRoot"`
}

// Config is pushcored's top-level configuration, loaded from a YAML file
// following the teacher's manager.Config/worker.Config convention of a
// plain struct passed by value rather than a package-level global.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
	// LogJSON switches pkg/log between console and JSON output.
	LogJSON bool `yaml:"logJSON"`

	// ListenAddr is the health/readiness/metrics HTTP listener address.
	ListenAddr string `yaml:"listenAddr"`

	// SessionDBPath is where pkg/session's bbolt-backed registry persists
	// session liveness markers.
	SessionDBPath string `yaml:"sessionDBPath"`
	// SessionTTL is how long a session may go untouched before the
	// Janitor considers it dead.
	SessionTTL time.Duration `yaml:"sessionTTL"`
	// JanitorInterval is how often the Janitor sweeps for expired
	// sessions and orphaned transactions.
	JanitorInterval time.Duration `yaml:"janitorInterval"`

	// ApplicationURI is this server's own application instance URI,
	// checked against a candidate ApplCerts certificate's SAN.
	ApplicationURI string `yaml:"applicationURI"`
	// PermissiveURICheck allows a candidate certificate with no URI SAN
	// through the application-URI check.
	PermissiveURICheck bool `yaml:"permissiveURICheck"`
	// RejectDegenerateStore makes certverify.Verifier reject every
	// candidate against a certificate group with a completely empty
	// trust list, instead of the default accept-all startup policy.
	RejectDegenerateStore bool `yaml:"rejectDegenerateStore"`

	// RejectedListMaxSize is parsed but not passed to the certificate
	// stores: each group's rejected list is capped at the fixed
	// certstore.MaxRejectedEntries, whatever this field says.
	RejectedListMaxSize int `yaml:"rejectedListMaxSize"`

	// Groups lists the certificate groups this server manages. Every
	// deployment needs at least ApplCerts; HttpCerts and UserTokenCerts
	// are optional depending on which secure channels the server opens.
	Groups []groupConfig `yaml:"groups"`

	// AdminPKIDir is where the administrative CertAuthority (pkg/security)
	// persists its own root CA material - separate from any of the
	// certificate groups above, since it secures pushcored's own HTTP
	// listener rather than anything pushcored administers on behalf of
	// another system. Empty disables the administrative CA entirely.
	AdminPKIDir string `yaml:"adminPKIDir"`
	// AdminKeyPassphrase, if set, seals the administrative CA's root key
	// at rest via security.KeyProtector. Left empty, the root key is
	// written unsealed - acceptable for local development only.
	AdminKeyPassphrase string `yaml:"adminKeyPassphrase"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:              string(log.InfoLevel),
		ListenAddr:            "127.0.0.1:9090",
		SessionDBPath:         "sessions.db",
		SessionTTL:            5 * time.Minute,
		JanitorInterval:       30 * time.Second,
		PermissiveURICheck:    true,
		RejectDegenerateStore: false,
		RejectedListMaxSize:   128,
		Groups: []groupConfig{
			{Group: "ApplCerts", PKIRoot: "pki/appl"},
		},
	}
}

// loadConfig reads and parses a pushcored.yaml file at path, filling in
// defaultConfig for anything the file leaves zero-valued.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
