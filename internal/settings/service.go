package settings

import (
	"context"
	"fmt"

	"eduoj/internal/problems"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// Service manages the stored problem configuration document and the roster
// inside it, keeping the in-process registry in sync with the settings table.
type Service struct {
	repo     Repository
	registry *problems.Registry
}

// NewService wires the settings service.
func NewService(repo Repository, registry *problems.Registry) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("problem registry is required")
	}
	return &Service{repo: repo, registry: registry}, nil
}

// LoadConfig reads the stored configuration document, parses it and installs
// it in the registry. Called at startup and after a restore.
func (s *Service) LoadConfig(ctx context.Context) (*problems.Config, error) {
	raw, err := s.repo.Get(ctx, ConfigSettingName)
	if err != nil {
		return nil, err
	}
	cfg, err := problems.ParseConfig([]byte(raw))
	if err != nil {
		return nil, err
	}
	s.registry.Load(cfg)
	logger.Info(ctx, "configuration document loaded",
		zap.Int("problems", len(cfg.Puzzles)),
		zap.Int("students", len(cfg.Students)),
	)
	return cfg, nil
}

// SaveConfig validates, stores and installs a new configuration document.
func (s *Service) SaveConfig(ctx context.Context, raw string) (*problems.Config, error) {
	cfg, err := problems.ParseConfig([]byte(raw))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Set(ctx, ConfigSettingName, raw); err != nil {
		return nil, err
	}
	s.registry.Load(cfg)
	return cfg, nil
}

// CurrentConfig returns the installed configuration document.
func (s *Service) CurrentConfig() (*problems.Config, error) {
	cfg := s.registry.Current()
	if cfg == nil {
		return nil, appErr.New(appErr.ConfigNotLoaded)
	}
	return cfg, nil
}

// ValidateStudent checks the roster inside the configuration document.
func (s *Service) ValidateStudent(studentID string) (problems.Student, error) {
	student, ok, err := s.registry.LookupStudent(studentID)
	if err != nil {
		return problems.Student{}, err
	}
	if !ok {
		return problems.Student{}, appErr.Newf(appErr.StudentNotRegistered, "student %s is not on the roster", studentID)
	}
	return student, nil
}
