package session

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
)

// AuthAPI is the slice of the backend client the session store needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*capmis.Session, error)
	Register(ctx context.Context, in capmis.RegisterInput) (*capmis.Session, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (*capmis.User, error)
}

type Store struct {
	api     AuthAPI
	storage StorageBackend
	log     *zap.Logger

	mu    sync.RWMutex
	user  *capmis.User
	token string
}

func New(api AuthAPI, storage StorageBackend, log *zap.Logger) *Store {
	return &Store{api: api, storage: storage, log: log}
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Current returns the logged-in profile, nil when unauthenticated.
func (s *Store) Current() *capmis.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) LoggedIn() bool { return s.Current() != nil }

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validateCredentials runs before any network call; a miss here never
// reaches the backend.
func validateCredentials(email, password string) error {
	if !emailRe.MatchString(email) {
		return capmis.NewValidationError("Please enter a valid email address")
	}
	if password == "" {
		return capmis.NewValidationError("Password is required")
	}
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) (*capmis.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	sess, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.accept(sess)
	return s.Current(), nil
}

func (s *Store) Register(ctx context.Context, in capmis.RegisterInput) (*capmis.User, error) {
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, capmis.NewValidationError("First and last name are required")
	}
	sess, err := s.api.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	s.accept(sess)
	return s.Current(), nil
}

// Logout tells the backend best-effort and always clears local state.
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.log.Debug("backend logout failed", zap.Error(err))
	}
	s.clear()
}

// Resume restores a session from the stored token. A token whose profile
// fetch fails is cleared everywhere: the caller ends up unauthenticated.
func (s *Store) Resume(ctx context.Context) error {
	token, err := s.storage.Load(TokenKey)
	if err != nil || token == "" {
		return nil
	}
	if expired(token, time.Now()) {
		s.log.Info("stored token expired, discarding")
		s.clear()
		return nil
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	user, err := s.api.GetProfile(ctx)
	if err != nil {
		s.clear()
		return err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return nil
}

func (s *Store) accept(sess *capmis.Session) {
	s.mu.Lock()
	u := sess.User
	s.user = &u
	s.token = sess.Token
	s.mu.Unlock()
	if err := s.storage.Save(TokenKey, sess.Token); err != nil {
		// session stays usable in memory
		s.log.Warn("could not persist token", zap.Error(err))
	}
}

func (s *Store) clear() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()
	if err := s.storage.Delete(TokenKey); err != nil {
		s.log.Debug("could not delete stored token", zap.Error(err))
	}
}

// expired inspects the token's exp claim without verifying the signature;
// verification is the backend's job. Opaque tokens pass through.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
