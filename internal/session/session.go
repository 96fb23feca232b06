// Package session holds the signed-in user's credentials for the dealership
// backend. A Store is handed to the wizard and the API client explicitly;
// nothing reads it from global state.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/dealerdesk/internal/logger"
)

// ErrNoSession is returned when no credentials are cached.
var ErrNoSession = errors.New("not logged in (run 'dealerdesk login')")

// ErrExpired is returned when the cached token's exp claim is in the past.
var ErrExpired = errors.New("session expired (run 'dealerdesk login')")

// Session is the cached identity of the signed-in user.
type Session struct {
	Token     string    `yaml:"token"`
	UserID    string    `yaml:"user_id,omitempty"`
	Username  string    `yaml:"username,omitempty"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// FromToken builds a session from a bearer token, reading the subject,
// username and expiry claims when the token is a JWT. The signature is not
// checked; the backend does that on every request.
func FromToken(token string) (Session, error) {
	if token == "" {
		return Session{}, fmt.Errorf("empty token")
	}
	sess := Session{Token: token}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque tokens are allowed; they just carry no identity.
		logger.Debug("Token is not a JWT, storing as opaque: %v", err)
		return sess, nil
	}

	if sub, err := claims.GetSubject(); err == nil {
		sess.UserID = sub
	}
	if name, ok := claims["username"].(string); ok {
		sess.Username = name
	} else if name, ok := claims["name"].(string); ok {
		sess.Username = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	return sess, nil
}

// Expired reports whether the session's expiry is known and before now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store caches the session in <data_dir>/session.yml.
type Store struct {
	path    string
	mu      sync.Mutex
	current *Session
	now     func() time.Time
}

// NewStore creates a store rooted at dataDir. Nothing is read until Load.
func NewStore(dataDir string) *Store {
	return &Store{
		path: filepath.Join(dataDir, "session.yml"),
		now:  time.Now,
	}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cached session. It returns ErrNoSession when nothing is
// cached and ErrExpired when the token is past its expiry.
func (s *Store) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	if sess.Expired(s.now()) {
		return nil, ErrExpired
	}

	s.current = &sess
	return &sess, nil
}

// Save writes sess to disk and makes it current.
func (s *Store) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	s.current = &sess
	return nil
}

// Token returns the current bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Current returns a copy of the current session, or nil when signed out.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Clear forgets the session in memory and on disk. Clearing an already
// empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session: %w", err)
	}
	logger.Info("Session cleared")
	return nil
}
