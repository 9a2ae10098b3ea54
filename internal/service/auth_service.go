package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/weighttracker/weighttracker/internal/auth"
	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/repository"
)

// Audit actions
const (
	AuditActionRegister        = "user.register"
	AuditActionLogin           = "user.login"
	AuditActionLoginFailed     = "user.login_failed"
	AuditActionAccountLocked   = "user.account_locked"
	AuditActionPasswordUpgrade = "user.password_upgraded"
)

const (
	defaultMaxAttempts  = 5
	defaultLockDuration = 10 * time.Minute
)

// AuthService handles registration and the login lockout state machine
type AuthService struct {
	userRepo     *repository.UserRepository
	hasher       *auth.Hasher
	policy       auth.PasswordPolicy
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
	log          *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo *repository.UserRepository,
	hasher *auth.Hasher,
	cfg config.SecurityConfig,
	log *logger.Logger,
) *AuthService {
	maxAttempts := cfg.Lockout.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	lockDuration := cfg.Lockout.Duration
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}
	return &AuthService{
		userRepo:     userRepo,
		hasher:       hasher,
		policy:       auth.NewPasswordPolicy(cfg.Password.Policy),
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		now:          time.Now,
		log:          log.WithComponent("auth_service"),
	}
}

// WithClock replaces the clock used for lockout decisions
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// RegisterRequest contains the data for registering a new user
type RegisterRequest struct {
	Email    string
	Username string
	Password string
	Phone    string
}

// Register validates the request, checks uniqueness and creates the user
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))
	password := strings.TrimSpace(req.Password)
	phone := strings.TrimSpace(req.Phone)

	for _, f := range []struct{ name, value string }{
		{"email", email}, {"username", username}, {"password", password}, {"phone", phone},
	} {
		if f.value == "" {
			return 0, invalid(f.name, "all fields are required")
		}
	}
	if err := auth.ValidateEmail(email); err != nil {
		return 0, invalid("email", err.Error())
	}
	if err := auth.ValidateUsername(username); err != nil {
		return 0, invalid("username", err.Error())
	}
	if err := auth.ValidatePhone(phone); err != nil {
		return 0, invalid("phone", err.Error())
	}
	if err := s.policy.Validate(password); err != nil {
		return 0, invalid("password", err.Error())
	}

	checks := []struct {
		exists func(context.Context, string) (bool, error)
		value  string
		dup    error
	}{
		{s.userRepo.ExistsByUsername, username, ErrDuplicateUsername},
		{s.userRepo.ExistsByEmail, email, ErrDuplicateEmail},
		{s.userRepo.ExistsByPhone, phone, ErrDuplicatePhone},
	}
	for _, c := range checks {
		exists, err := c.exists(ctx, c.value)
		if err != nil {
			return 0, persistence("check uniqueness", err)
		}
		if exists {
			return 0, c.dup
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, persistence("hash password", err)
	}

	id, err := s.userRepo.Create(ctx, &model.User{
		Email:        email,
		Username:     username,
		Phone:        phone,
		PasswordHash: hash,
	})
	if err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return 0, duplicateFor(dup.Field)
		}
		return 0, persistence("create user", err)
	}

	s.log.AuditLog(id, AuditActionRegister, map[string]interface{}{
		"algorithm": s.hasher.Algorithm(),
		"policy":    s.policy.Name(),
	})
	return id, nil
}

// Login authenticates by username or email and returns the user id
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (int64, error) {
	login := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	password = strings.TrimSpace(password)
	if login == "" {
		return 0, invalid("username", "username and password are required")
	}
	if password == "" {
		return 0, invalid("password", "username and password are required")
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, persistence("get user", err)
	}

	now := s.now()

	// Locked accounts are rejected before the password is looked at
	if user.IsLockedAt(now) {
		s.log.AuditLog(user.ID, AuditActionLoginFailed, map[string]interface{}{
			"reason": "account_locked",
		})
		return 0, &AccountLockedError{Until: *user.LockedUntil}
	}

	match, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		// Unknown formats are rows the legacy migration has not reached yet
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("stored password could not be verified")
		match = false
	}

	if !match {
		attempts, err := s.userRepo.IncrementFailedAttempts(ctx, user.ID)
		if err != nil {
			return 0, persistence("record failed attempt", err)
		}
		if err := s.handleFailedLogin(ctx, user.ID, attempts, now); err != nil {
			return 0, err
		}
		s.log.AuditLog(user.ID, AuditActionLoginFailed, map[string]interface{}{
			"reason":          "invalid_password",
			"failed_attempts": attempts,
		})
		return 0, ErrInvalidCredentials
	}

	// Reset failed attempts on successful login
	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		if err := s.userRepo.ResetFailedAttempts(ctx, user.ID); err != nil {
			return 0, persistence("reset failed attempts", err)
		}
	}

	s.log.AuditLog(user.ID, AuditActionLogin, nil)
	return user.ID, nil
}

// handleFailedLogin locks the account once the attempt threshold is reached
func (s *AuthService) handleFailedLogin(ctx context.Context, userID int64, attempts int, now time.Time) error {
	if attempts < s.maxAttempts {
		return nil
	}

	until := now.Add(s.lockDuration)
	if err := s.userRepo.LockUntil(ctx, userID, until); err != nil {
		return persistence("lock account", err)
	}

	s.log.Warn().
		Int64("user_id", userID).
		Int("attempts", attempts).
		Dur("lock_duration", s.lockDuration).
		Msg("account locked due to failed attempts")
	s.log.AuditLog(userID, AuditActionAccountLocked, map[string]interface{}{
		"failed_attempts": attempts,
		"locked_until":    until.UnixMilli(),
	})
	return nil
}

// AccountStatus is the lockout view of an account
type AccountStatus struct {
	State          model.AccountState `json:"state"`
	FailedAttempts int                `json:"failedAttempts"`
	LockedUntil    *time.Time         `json:"lockedUntil,omitempty"`
}

// Status reports where the account sits in the lockout state machine
func (s *AuthService) Status(ctx context.Context, userID int64) (*AccountStatus, error) {
	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status := &AccountStatus{
		State:          user.StateAt(now),
		FailedAttempts: user.FailedAttempts,
	}
	if user.IsLockedAt(now) {
		status.LockedUntil = user.LockedUntil
	}
	return status, nil
}

// User loads a user by id
func (s *AuthService) User(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistence("get user", err)
	}
	return user, nil
}

// MigrateLegacyPasswords hashes every stored password that is still
// plaintext and returns how many rows were upgraded
func (s *AuthService) MigrateLegacyPasswords(ctx context.Context) (int, error) {
	creds, err := s.userRepo.ListCredentials(ctx)
	if err != nil {
		return 0, persistence("list credentials", err)
	}

	upgraded := 0
	for _, c := range creds {
		if c.PasswordHash == "" || auth.IsHashed(c.PasswordHash) {
			continue
		}
		hash, err := s.hasher.Hash(c.PasswordHash)
		if err != nil {
			return upgraded, persistence("hash password", err)
		}
		if err := s.userRepo.UpdatePasswordHash(ctx, c.ID, hash); err != nil {
			return upgraded, persistence("update password", err)
		}
		s.log.AuditLog(c.ID, AuditActionPasswordUpgrade, map[string]interface{}{
			"algorithm": s.hasher.Algorithm(),
		})
		upgraded++
	}

	s.log.Info().Int("upgraded", upgraded).Int("scanned", len(creds)).Msg("legacy password migration finished")
	return upgraded, nil
}

func duplicateFor(field string) error {
	switch field {
	case "username":
		return ErrDuplicateUsername
	case "email":
		return ErrDuplicateEmail
	case "phone":
		return ErrDuplicatePhone
	}
	return persistence("create user", repository.ErrDuplicate)
}
