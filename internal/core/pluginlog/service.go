// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package pluginlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/uuidv7"
)

// # Service Layer

// Service writes and reads the plugin diagnostic channel.
//
// Writes are fire-and-forget: a failing log insert is itself logged and
// swallowed, because diagnostics must never take a download down with them.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a plugin-log [Service].
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With(slog.String("component", "pluginlog")),
	}
}

/*
Append records one diagnostic line for a plugin.

Parameters:
  - context: context.Context
  - pluginID: string
  - level: Level (unrecognised values degrade to INFO)
  - message: string
  - stackTrace: *string (optional)
*/
func (service *Service) Append(context context.Context, pluginID string, level Level, message string, stackTrace *string) {
	if !level.IsValid() {
		level = LevelInfo
	}

	entry := &Entry{
		ID:         uuidv7.New(),
		PluginID:   pluginID,
		Level:      level,
		Message:    message,
		StackTrace: stackTrace,
		CreatedAt:  time.Now().UTC(),
	}

	if err := service.repo.Insert(context, entry); err != nil {
		service.logger.Warn("plugin_log_insert_failed",
			slog.String("plugin_id", pluginID),
			slog.Any("error", err),
		)
	}
}

/*
List returns recent diagnostic lines, newest first.

Parameters:
  - context: context.Context
  - pluginID: string (empty selects all plugins)
  - limit: int (clamped to [1, 1000], default 100)

Returns:
  - []*Entry: Matching lines
  - error: Database retrieval failures
*/
func (service *Service) List(context context.Context, pluginID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	return service.repo.List(context, pluginID, limit)
}

/*
Prune removes lines older than the retention window.

Parameters:
  - context: context.Context
  - olderThanDays: int (must be >= 1)

Returns:
  - int: Count of deleted lines
  - error: Validation or database failures
*/
func (service *Service) Prune(context context.Context, olderThanDays int) (int, error) {
	validator := &validate.Validator{}
	validator.Range("olderThanDays", olderThanDays, 1, 3650)
	if err := validator.Err(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	deleted, err := service.repo.DeleteOlderThan(context, cutoff)
	if err != nil {
		return 0, err
	}

	service.logger.Info("plugin_logs_pruned",
		slog.Int("deleted", deleted),
		slog.Int("older_than_days", olderThanDays),
	)
	return deleted, nil
}

/*
Config returns the configuration map for one plugin.

Parameters:
  - context: context.Context
  - pluginID: string

Returns:
  - map[string]string: Key/value pairs
  - error: Database retrieval failures
*/
func (service *Service) Config(context context.Context, pluginID string) (map[string]string, error) {
	return service.repo.GetConfig(context, pluginID)
}

/*
UpdateConfig upserts configuration values for one plugin.

Only recognised keys are accepted; an empty value clears nothing and is
stored as-is (the driver treats blank credentials as absent).

Parameters:
  - context: context.Context
  - pluginID: string
  - values: map[string]string

Returns:
  - map[string]string: The full configuration after the update
  - error: Validation or database failures
*/
func (service *Service) UpdateConfig(context context.Context, pluginID string, values map[string]string) (map[string]string, error) {
	validator := &validate.Validator{}
	validator.Required("pluginId", pluginID)
	for key := range values {
		validator.OneOf("key", key, ConfigKeyUsername, ConfigKeyPassword, ConfigKeyLanguage)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	for key, value := range values {
		if err := service.repo.SetConfig(context, pluginID, key, value); err != nil {
			return nil, err
		}
	}

	service.logger.Info("plugin_config_updated",
		slog.String("plugin_id", pluginID),
		slog.Int("keys", len(values)),
	)
	return service.repo.GetConfig(context, pluginID)
}

// # Extractor Sink

// Sink adapts the service to the extractor driver's LogSink, pinning the
// plugin id and dropping the per-call context (the sink outlives requests).
type Sink struct {
	service  *Service
	pluginID string
}

// NewSink builds a sink for one plugin id.
func NewSink(service *Service, pluginID string) *Sink {
	return &Sink{service: service, pluginID: pluginID}
}

// Log implements extractor.LogSink.
func (s *Sink) Log(level, message string) {
	s.service.Append(context.Background(), s.pluginID, Level(level), message, nil)
}
