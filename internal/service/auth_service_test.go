package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weighttracker/weighttracker/internal/auth"
	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/database"
	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.auth.Register(ctx, RegisterRequest{
		Email:    "  Alice@Example.COM ",
		Username: "Alice",
		Password: "Secret1!",
		Phone:    "+1 555 123 4567",
	})
	require.NoError(t, err)

	user, err := env.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "+1 555 123 4567", user.Phone)
	assert.NotEqual(t, "Secret1!", user.PasswordHash)
	assert.True(t, auth.IsHashed(user.PasswordHash))
	assert.Equal(t, 0, user.FailedAttempts)
	assert.Nil(t, user.LockedUntil)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	valid := RegisterRequest{Email: "bob@example.com", Username: "bob", Password: "Secret1!", Phone: "5551234567"}

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
	}{
		{"empty email", func(r *RegisterRequest) { r.Email = " " }, "email"},
		{"empty username", func(r *RegisterRequest) { r.Username = "" }, "username"},
		{"empty password", func(r *RegisterRequest) { r.Password = "" }, "password"},
		{"empty phone", func(r *RegisterRequest) { r.Phone = "" }, "phone"},
		{"bad email", func(r *RegisterRequest) { r.Email = "bob-at-example" }, "email"},
		{"bad phone", func(r *RegisterRequest) { r.Phone = "call me" }, "phone"},
		{"short password", func(r *RegisterRequest) { r.Password = "Se1!" }, "password"},
		{"no uppercase", func(r *RegisterRequest) { r.Password = "secret1!" }, "password"},
		{"no digit", func(r *RegisterRequest) { r.Password = "Secrets!" }, "password"},
		{"no symbol", func(r *RegisterRequest) { r.Password = "Secret12" }, "password"},
		{"password over 72 bytes", func(r *RegisterRequest) { r.Password = "Secret1!" + strings.Repeat("a", 70) }, "password"},
		{"username shaped like an email", func(r *RegisterRequest) { r.Username = "carol@example.com" }, "username"},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := env.auth.Register(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	exists, err := env.users.ExistsByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAuthService_RegisterLongestPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	password := "Secret1!" + strings.Repeat("a", auth.MaxPasswordBytes-8)

	_, err := env.auth.Register(ctx, RegisterRequest{
		Email: "dave@example.com", Username: "dave", Password: password, Phone: "5551234567",
	})
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, "dave", password)
	assert.NoError(t, err)
}

func TestAuthService_RegisterRelaxedPolicy(t *testing.T) {
	sec := testSecurityConfig()
	sec.Password.Policy = auth.PolicyRelaxed
	env := newTestEnvWithSecurity(t, sec)

	_, err := env.auth.Register(context.Background(), RegisterRequest{
		Email: "carol@example.com", Username: "carol", Password: "Secret12", Phone: "5551234567",
	})
	assert.NoError(t, err)
}

func TestAuthService_RegisterDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "Secret1!", Phone: "5551234567",
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{
			"username wins over email",
			RegisterRequest{Email: "alice@example.com", Username: "ALICE", Password: "Secret1!", Phone: "5559999999"},
			ErrDuplicateUsername,
		},
		{
			"email compared case-insensitively",
			RegisterRequest{Email: "Alice@Example.com", Username: "alice2", Password: "Secret1!", Phone: "5559999999"},
			ErrDuplicateEmail,
		},
		{
			"phone",
			RegisterRequest{Email: "alice2@example.com", Username: "alice2", Password: "Secret1!", Phone: "5551234567"},
			ErrDuplicatePhone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "alice")

	got, err := env.auth.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = env.auth.Login(ctx, " ALICE@example.com ", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = env.auth.Login(ctx, "nobody", "Secret1!")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.auth.Login(ctx, "", "Secret1!")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.auth.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	status, err := env.auth.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStateDegraded, status.State)
	assert.Equal(t, 1, status.FailedAttempts)
	assert.Nil(t, status.LockedUntil)
}

func TestAuthService_SuccessResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "alice")

	for i := 0; i < 3; i++ {
		_, err := env.auth.Login(ctx, "alice", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := env.auth.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)

	status, err := env.auth.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStateActive, status.State)
	assert.Equal(t, 0, status.FailedAttempts)
}

func TestAuthService_Lockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "alice")

	for i := 1; i <= 5; i++ {
		_, err := env.auth.Login(ctx, "alice", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}
	lockedAt := env.clock.Now()

	// Correct password is not even checked while locked
	_, err := env.auth.Login(ctx, "alice", "Secret1!")
	require.ErrorIs(t, err, ErrAccountLocked)
	var locked *AccountLockedError
	require.True(t, errors.As(err, &locked))
	assert.WithinDuration(t, lockedAt.Add(10*time.Minute), locked.Until, time.Millisecond)
	assert.Equal(t, 10*time.Minute, locked.Remaining(lockedAt))

	// Rejections while locked do not touch the counters
	_, err = env.auth.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)
	user, err := env.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, user.FailedAttempts)

	status, err := env.auth.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStateLocked, status.State)
	require.NotNil(t, status.LockedUntil)

	env.clock.Advance(10*time.Minute - time.Second)
	_, err = env.auth.Login(ctx, "alice", "Secret1!")
	require.ErrorIs(t, err, ErrAccountLocked)

	env.clock.Advance(2 * time.Second)
	got, err := env.auth.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	user, err = env.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, user.FailedAttempts)
	assert.Nil(t, user.LockedUntil)
}

func TestAuthService_FailureAfterExpiryRelocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice")

	for i := 0; i < 5; i++ {
		_, _ = env.auth.Login(ctx, "alice", "wrong")
	}
	env.clock.Advance(11 * time.Minute)

	_, err := env.auth.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, "alice", "Secret1!")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestAuthService_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.auth.Register(ctx, RegisterRequest{
		Email: "dana@example.com", Username: "dana", Password: "Str0ng!Pass", Phone: "555-867-5309",
	})
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, RegisterRequest{
		Email: "dana@example.com", Username: "dana2", Password: "Str0ng!Pass", Phone: "555-867-5310",
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	for i := 0; i < 5; i++ {
		_, err = env.auth.Login(ctx, "dana", "not-it")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = env.auth.Login(ctx, "dana", "Str0ng!Pass")
	require.ErrorIs(t, err, ErrAccountLocked)

	env.clock.Advance(10 * time.Minute)
	got, err := env.auth.Login(ctx, "dana@example.com", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestAuthService_MigrateLegacyPasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "hashed")

	legacyID, err := env.users.Create(ctx, &model.User{
		Email: "legacy@example.com", Username: "legacy", Phone: "5550000000", PasswordHash: "Secret1!",
	})
	require.NoError(t, err)

	// Plaintext rows are never accepted by login
	_, err = env.auth.Login(ctx, "legacy", "Secret1!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	n, err := env.auth.MigrateLegacyPasswords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	user, err := env.users.GetByID(ctx, legacyID)
	require.NoError(t, err)
	assert.True(t, auth.IsHashed(user.PasswordHash))

	got, err := env.auth.Login(ctx, "legacy", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, legacyID, got)

	n, err = env.auth.MigrateLegacyPasswords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAuthService_StatusUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Status(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_PersistenceFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := database.New(sqlDB, config.DriverSQLite)
	svc := NewAuthService(repository.NewUserRepository(db), auth.NewBcryptHasher(bcrypt.MinCost), testSecurityConfig(), logger.Nop())

	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("disk I/O error"))
	_, err = svc.Register(context.Background(), RegisterRequest{
		Email: "erin@example.com", Username: "erin", Password: "Secret1!", Phone: "5551234567",
	})
	assert.ErrorIs(t, err, ErrPersistence)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("disk I/O error"))
	_, err = svc.Login(context.Background(), "erin", "Secret1!")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_RegisterInsertRace(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{"users_username_key", ErrDuplicateUsername},
		{"users_email_key", ErrDuplicateEmail},
		{"users_phone_key", ErrDuplicatePhone},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			sqlDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer sqlDB.Close()

			db := database.New(sqlDB, config.DriverPostgres)
			svc := NewAuthService(repository.NewUserRepository(db), auth.NewBcryptHasher(bcrypt.MinCost), testSecurityConfig(), logger.Nop())

			// the row appears between the existence checks and the insert
			for i := 0; i < 3; i++ {
				mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			}
			mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			_, err = svc.Register(context.Background(), RegisterRequest{
				Email: "frank@example.com", Username: "frank", Password: "Secret1!", Phone: "5551234567",
			})
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrPersistence)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuthService_LoginResetFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := database.New(sqlDB, config.DriverSQLite)
	svc := NewAuthService(repository.NewUserRepository(db), auth.NewBcryptHasher(bcrypt.MinCost), testSecurityConfig(), logger.Nop())

	hash, err := bcrypt.GenerateFromPassword([]byte("Secret1!"), bcrypt.MinCost)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "email", "username", "phone", "password_hash", "failed_attempts", "locked_until"}).
		AddRow(int64(1), "gina@example.com", "gina", "5551234567", string(hash), 3, int64(0))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	mock.ExpectExec("UPDATE users SET failed_attempts = 0").WillReturnError(errors.New("disk I/O error"))

	// the counter must not stay stale after a correct password
	_, err = svc.Login(context.Background(), "gina", "Secret1!")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
