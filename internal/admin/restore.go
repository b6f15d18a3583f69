package admin

import (
	"context"
	"fmt"

	"eduoj/internal/actionlog"
	"eduoj/internal/alertlog"
	"eduoj/internal/common/db"
	"eduoj/internal/scoreboard"
	"eduoj/internal/settings"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/logger"
)

// RestoreService resets the grading state: it makes sure the schema exists,
// wipes scoreboard, action logs and alerts, and reloads the configuration
// document into the registry. The settings table itself is kept, so a
// restore does not lose the uploaded configuration.
type RestoreService struct {
	dbProvider db.Provider
	settings   *settings.Service
	scores     scoreboard.Repository
	actions    actionlog.Repository
	alerts     alertlog.Repository
}

// NewRestoreService wires the restore flow.
func NewRestoreService(
	provider db.Provider,
	settingsService *settings.Service,
	scores scoreboard.Repository,
	actions actionlog.Repository,
	alerts alertlog.Repository,
) (*RestoreService, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is required")
	}
	if settingsService == nil {
		return nil, fmt.Errorf("settings service is required")
	}
	if scores == nil || actions == nil || alerts == nil {
		return nil, fmt.Errorf("scoreboard, action log and alert repositories are required")
	}
	return &RestoreService{
		dbProvider: provider,
		settings:   settingsService,
		scores:     scores,
		actions:    actions,
		alerts:     alerts,
	}, nil
}

// EnsureSchema creates any missing tables. Safe to run repeatedly; also run
// at startup.
func (s *RestoreService) EnsureSchema(ctx context.Context) error {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	for _, schema := range []string{settings.Schema, scoreboard.Schema, actionlog.Schema, alertlog.Schema} {
		if _, err := database.Exec(ctx, schema); err != nil {
			return appErr.Wrap(err, appErr.DatabaseError)
		}
	}
	return nil
}

// Restore resets all grading state and reloads the configuration document.
func (s *RestoreService) Restore(ctx context.Context) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := s.scores.Reset(ctx, nil); err != nil {
		return err
	}
	if err := s.actions.Clear(ctx, nil); err != nil {
		return err
	}
	if err := s.alerts.Clear(ctx, nil); err != nil {
		return err
	}

	if _, err := s.settings.LoadConfig(ctx); err != nil {
		// A fresh install has no stored document yet; restoring into
		// that state is not an error.
		if !appErr.Is(err, appErr.SettingNotFound) {
			return err
		}
		logger.Warn(ctx, "restore finished without a stored configuration document")
	}

	logger.Info(ctx, "grading state restored")
	return nil
}
