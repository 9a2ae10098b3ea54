package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/weighttracker/weighttracker/internal/auth"
	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/repository"
)

// Preference keys for the remembered session
const (
	PrefRememberMe   = "remember_me"
	PrefSessionToken = "session_token"
	PrefSessionUser  = "user_id"
	PrefSigningKey   = "session_signing_key"
)

// Session is the authenticated user of this device
type Session struct {
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	Remembered bool      `json:"remembered"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

// SessionService remembers the last login across runs when asked to
type SessionService struct {
	prefs    repository.PreferenceStore
	userRepo *repository.UserRepository
	cfg      config.SessionConfig
	now      func() time.Time
	log      *logger.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(
	prefs repository.PreferenceStore,
	userRepo *repository.UserRepository,
	cfg config.SessionConfig,
	log *logger.Logger,
) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "weighttracker"
	}
	return &SessionService{
		prefs:    prefs,
		userRepo: userRepo,
		cfg:      cfg,
		now:      time.Now,
		log:      log.WithComponent("session_service"),
	}
}

// WithClock replaces the clock used for token issue and expiry
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Start begins a session for the user. With remember set a signed token is
// stored so later runs can Resume; otherwise any stored session is cleared.
func (s *SessionService) Start(ctx context.Context, userID int64, remember bool) (*Session, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistence("get user", err)
	}

	session := &Session{UserID: user.ID, Username: user.Username}
	if !remember {
		if err := s.clear(ctx); err != nil {
			return nil, err
		}
		return session, nil
	}

	tokens, err := s.tokenService(ctx)
	if err != nil {
		return nil, err
	}
	token, err := tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	for name, value := range map[string]string{
		PrefRememberMe:   "true",
		PrefSessionToken: token,
		PrefSessionUser:  strconv.FormatInt(user.ID, 10),
	} {
		if err := s.prefs.Set(ctx, name, value); err != nil {
			return nil, persistence("save session", err)
		}
	}

	session.Remembered = true
	session.ExpiresAt = s.now().Add(s.cfg.TTL)
	s.log.Debug().Int64("user_id", user.ID).Msg("session remembered")
	return session, nil
}

// Resume restores the remembered session, or returns ErrNotLoggedIn
func (s *SessionService) Resume(ctx context.Context) (*Session, error) {
	remember, ok, err := s.prefs.Get(ctx, PrefRememberMe)
	if err != nil {
		return nil, persistence("read session", err)
	}
	if !ok || remember != "true" {
		return nil, ErrNotLoggedIn
	}

	token, ok, err := s.prefs.Get(ctx, PrefSessionToken)
	if err != nil {
		return nil, persistence("read session", err)
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}

	tokens, err := s.tokenService(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := tokens.Validate(token)
	if err != nil {
		s.log.Info().Err(err).Msg("discarding remembered session")
		return nil, s.forget(ctx)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, s.forget(ctx)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.forget(ctx)
		}
		return nil, persistence("get user", err)
	}

	session := &Session{UserID: user.ID, Username: user.Username, Remembered: true}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// End forgets the remembered session
func (s *SessionService) End(ctx context.Context) error {
	return s.clear(ctx)
}

// forget clears stored state and reports ErrNotLoggedIn
func (s *SessionService) forget(ctx context.Context) error {
	if err := s.clear(ctx); err != nil {
		return err
	}
	return ErrNotLoggedIn
}

func (s *SessionService) clear(ctx context.Context) error {
	if err := s.prefs.Delete(ctx, PrefRememberMe, PrefSessionToken, PrefSessionUser); err != nil {
		return persistence("clear session", err)
	}
	return nil
}

// tokenService uses the configured secret, or a random device key that is
// generated on first use and kept in the preference store
func (s *SessionService) tokenService(ctx context.Context) (*auth.TokenService, error) {
	secret := s.cfg.Secret
	if secret == "" {
		key, ok, err := s.prefs.Get(ctx, PrefSigningKey)
		if err != nil {
			return nil, persistence("read signing key", err)
		}
		if !ok {
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return nil, fmt.Errorf("failed to generate signing key: %w", err)
			}
			key = hex.EncodeToString(raw)
			if err := s.prefs.Set(ctx, PrefSigningKey, key); err != nil {
				return nil, persistence("save signing key", err)
			}
		}
		secret = key
	}
	return auth.NewTokenService([]byte(secret), s.cfg.Issuer, s.cfg.TTL).WithClock(s.now), nil
}
