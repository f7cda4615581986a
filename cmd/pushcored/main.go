package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nexusgds/pushcore/pkg/api"
	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/certverify"
	"github.com/nexusgds/pushcore/pkg/channels"
	"github.com/nexusgds/pushcore/pkg/dispatch"
	"github.com/nexusgds/pushcore/pkg/events"
	"github.com/nexusgds/pushcore/pkg/janitor"
	"github.com/nexusgds/pushcore/pkg/log"
	"github.com/nexusgds/pushcore/pkg/metrics"
	"github.com/nexusgds/pushcore/pkg/security"
	"github.com/nexusgds/pushcore/pkg/session"
	"github.com/nexusgds/pushcore/pkg/types"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pushcored",
	Short:   "pushcored - OPC UA GDS Push-Management Core",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("pushcored version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("config", "pushcored.yaml", "Path to pushcored.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initPKICmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the push-management dispatcher and its HTTP operational surface",
	RunE:  runServe,
}

var initPKICmd = &cobra.Command{
	Use:   "init-pki",
	Short: "Bootstrap pushcored's own administrative CA",
	RunE:  runInitPKI,
}

func loadConfigFromFlags(cmd *cobra.Command) (Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return loadConfig(path)
}

func runInitPKI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	if cfg.AdminPKIDir == "" {
		return fmt.Errorf("adminPKIDir must be set in config to initialize an administrative CA")
	}

	ca, err := newAdminCA(cfg)
	if err != nil {
		return err
	}
	if err := ca.Initialize(); err != nil {
		return fmt.Errorf("initialize administrative CA: %w", err)
	}
	if err := ca.SaveToDisk(cfg.AdminPKIDir); err != nil {
		return fmt.Errorf("save administrative CA: %w", err)
	}
	fmt.Printf("administrative CA initialized at %s\n", cfg.AdminPKIDir)
	return nil
}

func newAdminCA(cfg Config) (*security.CertAuthority, error) {
	if cfg.AdminKeyPassphrase == "" {
		return security.NewCertAuthority(nil), nil
	}
	protector, err := security.NewKeyProtectorFromPassphrase(cfg.AdminKeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("build key protector: %w", err)
	}
	return security.NewCertAuthority(protector), nil
}

// healthListenerCertID is the cache key the admin CA issues and tracks
// the health/metrics listener's server certificate under.
const healthListenerCertID = "health-listener"

// healthTLSConfig loads the administrative CA from cfg.AdminPKIDir and
// issues the health/metrics listener a server certificate from it. It
// returns a nil *tls.Config - plain HTTP - when AdminPKIDir is unset or
// the CA has not yet been bootstrapped with init-pki, so a freshly
// deployed server still comes up reachable rather than refusing to
// start. The returned CertAuthority is nil under the same conditions;
// callers use it to monitor the issued certificate for rotation.
func healthTLSConfig(cfg Config) (*tls.Config, *security.CertAuthority) {
	if cfg.AdminPKIDir == "" {
		log.Logger.Warn().Msg("adminPKIDir not set, health/metrics listener will serve plain HTTP")
		return nil, nil
	}

	ca, err := newAdminCA(cfg)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("failed to build administrative CA, health/metrics listener will serve plain HTTP")
		return nil, nil
	}
	if err := ca.LoadFromDisk(cfg.AdminPKIDir); err != nil {
		log.Logger.Warn().Err(err).Str("dir", cfg.AdminPKIDir).Msg("administrative CA not initialized (run init-pki), health/metrics listener will serve plain HTTP")
		return nil, nil
	}

	cert, err := issueHealthListenerCert(ca, cfg.ListenAddr)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("failed to issue health/metrics server certificate, falling back to plain HTTP")
		return nil, nil
	}
	return &tls.Config{Certificates: []tls.Certificate{*cert}}, ca
}

func issueHealthListenerCert(ca *security.CertAuthority, listenAddr string) (*tls.Certificate, error) {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		host = listenAddr
	}
	var dnsNames []string
	var ipAddresses []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ipAddresses = append(ipAddresses, ip)
	} else if host != "" && !strings.EqualFold(host, "0.0.0.0") && !strings.EqualFold(host, "::") {
		dnsNames = append(dnsNames, host)
	}
	dnsNames = append(dnsNames, "localhost")
	ipAddresses = append(ipAddresses, net.ParseIP("127.0.0.1"))

	return ca.IssueServerCertificate(healthListenerCertID, dnsNames, ipAddresses)
}

// checkHealthListenerCertRotation reports the admin CA's currently
// cached health-listener certificate's remaining lifetime to
// AdminCertExpirySeconds and logs a warning once it falls inside
// security.CertNeedsRotation's threshold. Actually rotating the live
// listener's TLS config is left to an operator-triggered restart; this
// check only surfaces that a rotation is due.
func checkHealthListenerCertRotation(ca *security.CertAuthority) bool {
	if ca == nil {
		return false
	}
	cached, ok := ca.GetCachedCert(healthListenerCertID)
	if !ok {
		return false
	}
	metrics.AdminCertExpirySeconds.Set(security.GetCertTimeRemaining(cached.Cert).Seconds())
	if security.CertNeedsRotation(cached.Cert) {
		log.Logger.Warn().Time("expiry", security.GetCertExpiry(cached.Cert)).Msg("health/metrics listener certificate is due for rotation, restart pushcored to reissue it")
		return true
	}
	return false
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	if len(cfg.Groups) == 0 {
		return fmt.Errorf("config must list at least one certificate group")
	}

	stores := make(map[types.Group]certstore.Store, len(cfg.Groups))
	groups := make([]types.Group, 0, len(cfg.Groups))
	for _, gc := range cfg.Groups {
		fs, err := certstore.NewFileStore(gc.PKIRoot)
		if err != nil {
			return fmt.Errorf("open certificate store for group %s: %w", gc.Group, err)
		}
		group := types.Group(gc.Group)
		stores[group] = fs
		groups = append(groups, group)
	}

	sessions, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		return fmt.Errorf("open session registry: %w", err)
	}
	defer sessions.Close()

	verifier := certverify.New(certverify.Config{RejectDegenerateStore: cfg.RejectDegenerateStore})
	chReg := channels.NewRegistry()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	srv := dispatch.NewServer(dispatch.Config{
		ApplicationURI:     cfg.ApplicationURI,
		PermissiveURICheck: cfg.PermissiveURICheck,
	}, stores, verifier, chReg, broker)

	j := janitor.New(cfg.JanitorInterval, func() bool {
		return srv.ReclaimExpiredSessions(sessions, cfg.SessionTTL, time.Now())
	})
	j.Start()
	defer j.Stop()

	tlsConfig, adminCA := healthTLSConfig(cfg)
	if adminCA != nil {
		certJanitor := janitor.New(cfg.JanitorInterval, func() bool {
			return checkHealthListenerCertRotation(adminCA)
		})
		certJanitor.Start()
		defer certJanitor.Stop()
	}

	healthSrv := api.NewHealthServer(srv, sessions, groups)
	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info().Str("addr", cfg.ListenAddr).Bool("tls", tlsConfig != nil).Msg("starting health/metrics listener")
		if err := healthSrv.Start(cfg.ListenAddr, tlsConfig); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("health server error: %w", err)
		}
	}()

	log.Logger.Info().Int("groups", len(groups)).Msg("pushcored serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		log.Logger.Error().Err(err).Msg("listener error, shutting down")
	}

	return nil
}
