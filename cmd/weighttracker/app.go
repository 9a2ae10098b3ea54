package main

import (
	"errors"
	"fmt"

	"github.com/weighttracker/weighttracker/internal/auth"
	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/database"
	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/notify"
	"github.com/weighttracker/weighttracker/internal/repository"
	"github.com/weighttracker/weighttracker/internal/service"
)

// app is the wired object graph behind every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	rdb      *database.Redis
	auth     *service.AuthService
	tracker  *service.TrackerService
	sessions *service.SessionService
	alerter  *notify.Alerter
}

func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("driver", db.Driver).Msg("database ready")

	a := &app{cfg: cfg, log: log, db: db}

	var prefs repository.PreferenceStore = repository.NewPreferenceRepository(db)
	if cfg.Preferences.Backend == "redis" {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.rdb = rdb
		prefs = repository.NewRedisPreferenceRepository(rdb.Client, cfg.Redis.Prefix)
	}

	gateway, err := notify.NewGateway(cfg.Notifications, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	measurementRepo := repository.NewMeasurementRepository(db, cfg.Measurements.Location())
	goalRepo := repository.NewGoalRepository(db)

	// Initialize services
	a.alerter = notify.NewAlerter(gateway, prefs, userRepo, notify.TemplatesFromConfig(cfg.Notifications), log)
	a.auth = service.NewAuthService(userRepo, auth.NewHasherFromConfig(cfg.Security.Password), cfg.Security, log)
	a.tracker = service.NewTrackerService(measurementRepo, goalRepo, a.alerter, log)
	a.sessions = service.NewSessionService(prefs, userRepo, cfg.Session, log)

	return a, nil
}

// Close releases the database and Redis connections
func (a *app) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
