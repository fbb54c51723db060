package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const sessionBucket = "sessions"

// record is the stored value for one token.
type record struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BoltStore implements the Store interface using BoltDB.
type BoltStore struct {
	db  *bbolt.DB
	ttl time.Duration
}

// NewBoltStore creates a new BoltStore instance. Sessions expire ttl after
// issuance.
func NewBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db, ttl: ttl}, nil
}

// Issue creates a session for the user and returns its token.
func (s *BoltStore) Issue(userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	token := hex.EncodeToString(buf)

	data, err := json.Marshal(record{
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(token), data)
	})
	if err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	return token, nil
}

// Authenticate resolves a token to its user identifier. Unknown, corrupt,
// and expired tokens all fail with ErrUnauthenticated; expired records are
// deleted on the way out.
func (s *BoltStore) Authenticate(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	var rec record
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionBucket)).Get([]byte(token))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	if !found {
		return "", ErrUnauthenticated
	}

	if time.Now().After(rec.ExpiresAt) {
		// Lazy cleanup; the delete failing changes nothing for the caller
		s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(sessionBucket)).Delete([]byte(token))
		})
		return "", ErrUnauthenticated
	}

	return rec.UserID, nil
}

// Revoke invalidates a token.
func (s *BoltStore) Revoke(token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(token))
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
