// Package identity derives stable user ids from passphrases.
//
// A passphrase maps one-way to the id that keys all synced documents
// for a user. The mapping is deterministic across devices — typing the
// same passphrase anywhere yields the same id — and there is no
// recovery: losing the passphrase loses access to that id's synced
// data.
package identity

import (
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// Fixed application salt. The derivation must be deterministic across
// devices, so a per-user random salt is not an option here.
var appSalt = []byte("qwirkle-companion-identity-v1")

// scrypt parameters; interactive-login strength.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// ErrEmptyPassphrase rejects passphrases that normalize to nothing.
type ErrEmptyPassphrase struct{}

func (ErrEmptyPassphrase) Error() string { return "passphrase is empty" }

// Normalize trims surrounding whitespace and lowercases, so that
// "My Horse  " and "my horse" identify the same user.
func Normalize(passphrase string) string {
	return strings.ToLower(strings.TrimSpace(passphrase))
}

// DeriveUserID maps a passphrase to its stable user id: hex-encoded
// scrypt over the normalized passphrase.
func DeriveUserID(passphrase string) (string, error) {
	norm := Normalize(passphrase)
	if norm == "" {
		return "", ErrEmptyPassphrase{}
	}
	key, err := scrypt.Key([]byte(norm), appSalt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// Service tracks the most recently adopted identity and notifies
// observers when it changes. It is an observer seam, not the source of
// request identity: per-request identity is carried by the JWT and
// every login overwrites the tracked id, so nothing request-scoped may
// read CurrentUserID. It is explicitly constructed and passed to the
// layers that need it rather than living as package state.
type Service struct {
	mu        sync.RWMutex
	userID    string
	observers []func(userID string)
}

// NewService returns a service with no identity set.
func NewService() *Service {
	return &Service{}
}

// SetPassphrase derives and adopts the identity for passphrase,
// returning the user id. Observers fire only when the id actually
// changes.
func (s *Service) SetPassphrase(passphrase string) (string, error) {
	id, err := DeriveUserID(passphrase)
	if err != nil {
		return "", err
	}
	s.set(id)
	return id, nil
}

// Clear drops the current identity.
func (s *Service) Clear() {
	s.set("")
}

func (s *Service) set(id string) {
	s.mu.Lock()
	changed := s.userID != id
	s.userID = id
	observers := s.observers
	s.mu.Unlock()

	if changed {
		for _, fn := range observers {
			fn(id)
		}
	}
}

// CurrentUserID returns the active user id, or "" when none is set.
func (s *Service) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// OnIdentityChange registers a callback invoked with the new id (""
// on Clear) whenever the identity changes.
func (s *Service) OnIdentityChange(fn func(userID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}
