package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexusgds/pushcore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// record is the persisted liveness entry for one session.
type record struct {
	LastSeen time.Time `json:"last_seen"`
}

// Registry is a bbolt-backed table of session IDs to last-seen
// timestamps.
type Registry struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a Registry backed by the database
// file at path.
func Open(path string) (*Registry, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, types.NewError("session.Open", types.BadInternalError, fmt.Errorf("open session database: %w", err))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, types.NewError("session.Open", types.BadInternalError, fmt.Errorf("create sessions bucket: %w", err))
	}
	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Touch records sessionID as alive at the current moment, creating its
// record if this is the first time it has been seen.
func (r *Registry) Touch(sessionID string, at time.Time) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := json.Marshal(record{LastSeen: at})
		if err != nil {
			return err
		}
		return b.Put([]byte(sessionID), data)
	})
}

// Drop removes sessionID's record entirely, once the janitor has
// reclaimed everything the session owned.
func (r *Registry) Drop(sessionID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(sessionID))
	})
}

// IsLive reports whether sessionID has a record and was last seen more
// recently than ttl ago. An unknown session is never live.
func (r *Registry) IsLive(sessionID string, ttl time.Duration, now time.Time) (bool, error) {
	var live bool
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(sessionID))
		if data == nil {
			return nil
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		live = now.Sub(rec.LastSeen) <= ttl
		return nil
	})
	if err != nil {
		return false, types.NewError("session.IsLive", types.BadInternalError, err)
	}
	return live, nil
}

// ExpiredIDs returns every session ID last seen more than ttl ago, for
// the janitor to reclaim.
func (r *Registry) ExpiredIDs(ttl time.Duration, now time.Time) ([]string, error) {
	var expired []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if now.Sub(rec.LastSeen) > ttl {
				expired = append(expired, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, types.NewError("session.ExpiredIDs", types.BadInternalError, err)
	}
	return expired, nil
}

// LiveIDs returns every session ID last seen within ttl of now.
func (r *Registry) LiveIDs(ttl time.Duration, now time.Time) ([]string, error) {
	var live []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if now.Sub(rec.LastSeen) <= ttl {
				live = append(live, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, types.NewError("session.LiveIDs", types.BadInternalError, err)
	}
	return live, nil
}
