package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weighttracker/weighttracker/internal/auth"
	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/database"
	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	db           *database.DB
	clock        *fakeClock
	users        *repository.UserRepository
	measurements *repository.MeasurementRepository
	goals        *repository.GoalRepository
	prefs        *repository.PreferenceRepository
	auth         *AuthService
	phones       int
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithSecurity(t, testSecurityConfig())
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		Password: config.PasswordConfig{Policy: auth.PolicyStrict, Algorithm: auth.AlgorithmBcrypt},
		Lockout:  config.LockoutConfig{MaxAttempts: 5, Duration: 10 * time.Minute},
	}
}

func newTestEnvWithSecurity(t *testing.T, sec config.SecurityConfig) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	clock := newFakeClock()
	users := repository.NewUserRepository(db)
	return &testEnv{
		db:           db,
		clock:        clock,
		users:        users,
		measurements: repository.NewMeasurementRepository(db, time.UTC),
		goals:        repository.NewGoalRepository(db),
		prefs:        repository.NewPreferenceRepository(db),
		auth:         NewAuthService(users, auth.NewBcryptHasher(bcrypt.MinCost), sec, logger.Nop()).WithClock(clock.Now),
	}
}

func (e *testEnv) register(t *testing.T, name string) int64 {
	t.Helper()
	id, err := e.auth.Register(context.Background(), RegisterRequest{
		Email:    name + "@example.com",
		Username: name,
		Password: "Secret1!",
		Phone:    e.nextPhone(),
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) nextPhone() string {
	e.phones++
	return fmt.Sprintf("555-010-%04d", e.phones)
}
