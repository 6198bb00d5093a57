// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package followcfg

import (
	"context"
	"log/slog"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
)

// # Service Layer

// Service guards the follow-list configuration with its business rules.
//
// A settings change observed here takes effect at the scheduler's next
// tick; no running tick is preempted.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a follow-config [Service].
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With(slog.String("component", "followcfg")),
	}
}

/*
Get returns the current configuration.

Parameters:
  - context: context.Context

Returns:
  - Config: Stored or default configuration
  - error: Storage failures
*/
func (service *Service) Get(context context.Context) (Config, error) {
	return service.repo.Get(context)
}

/*
Update applies new scheduler settings, preserving the legacy URL list and
the last-check stamp.

An intervalHours of zero is the documented "disable" shorthand: the
schedule is switched off and the stored cadence keeps its previous value.

Parameters:
  - context: context.Context
  - enabled: bool
  - intervalHours: int (0 disables; otherwise 1..168)

Returns:
  - Config: The configuration after the update
  - error: Validation or storage failures
*/
func (service *Service) Update(context context.Context, enabled bool, intervalHours int) (Config, error) {
	current, err := service.repo.Get(context)
	if err != nil {
		return Config{}, err
	}

	if intervalHours == 0 {
		enabled = false
		intervalHours = current.CheckIntervalHours
	}

	validator := &validate.Validator{}
	validator.Range("intervalHours", intervalHours, 1, 168)
	if err := validator.Err(); err != nil {
		return Config{}, err
	}

	current.Enabled = enabled
	current.CheckIntervalHours = intervalHours

	if err := service.repo.Save(context, current); err != nil {
		return Config{}, err
	}

	service.logger.Info("follow_schedule_updated",
		slog.Bool("enabled", current.Enabled),
		slog.Int("interval_hours", current.CheckIntervalHours),
	)
	return current, nil
}

/*
StampLastCheck records the completion time of a follow-list run.

Parameters:
  - context: context.Context
  - at: time.Time

Returns:
  - error: Storage failures
*/
func (service *Service) StampLastCheck(context context.Context, at time.Time) error {
	current, err := service.repo.Get(context)
	if err != nil {
		return err
	}

	stamp := at.UTC()
	current.LastCheckTime = &stamp
	return service.repo.Save(context, current)
}
