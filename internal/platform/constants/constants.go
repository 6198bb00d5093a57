// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Catalog Limits: Outbound request caps and page sizes for the upstream catalog.
  - Extractor Timing: Subprocess timeouts for chapter and series runs.
  - Scheduler Cadence: Tick intervals and retry backoff.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "komga-enhanced"
	AppVersion = "0.3.0"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting (inbound, per client IP)

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Catalog Limits (outbound)

const (
	// CatalogRequestsPerSecond caps outbound catalog calls per sliding second.
	CatalogRequestsPerSecond = 5

	// CatalogRequestsPerMinute caps outbound catalog calls per sliding minute.
	CatalogRequestsPerMinute = 40

	// CatalogRateBuffer is added to every computed wait so a request never
	// lands exactly on a window edge.
	CatalogRateBuffer = 100 * time.Millisecond

	// CatalogHTTPTimeout bounds a single catalog HTTP round-trip.
	CatalogHTTPTimeout = 30 * time.Second

	// CatalogPageSize is the chapter-feed page size used when enumerating all chapters.
	CatalogPageSize = 100

	// MetadataFetchTimeout bounds the whole metadata resolution for one URL,
	// including the extractor simulate fallback.
	MetadataFetchTimeout = 60 * time.Second
)

// # Extractor Timing

const (
	// ExtractorProbeTimeout bounds each --version probe when resolving the binary.
	ExtractorProbeTimeout = 2 * time.Second

	// ChapterDownloadTimeout bounds a single-chapter extractor run.
	ChapterDownloadTimeout = 10 * time.Minute

	// SeriesDownloadTimeout bounds a whole-series extractor run.
	SeriesDownloadTimeout = 2 * time.Hour
)

// # Scheduler Cadence

const (
	// QueueTickInterval is how often the pending queue is polled for dispatch.
	QueueTickInterval = 30 * time.Second

	// QueueTickInitialDelay postpones the first queue tick after startup.
	QueueTickInitialDelay = 10 * time.Second

	// RetryTickInterval is how often failed entries are examined for auto-retry.
	RetryTickInterval = 5 * time.Minute

	// RetryTickInitialDelay postpones the first auto-retry tick after startup.
	RetryTickInitialDelay = 1 * time.Minute

	// RetryBackoffStep is the linear backoff unit: attempt k waits k x step.
	RetryBackoffStep = 5 * time.Minute

	// FollowWatchDebounce coalesces bursts of follow-list file events into
	// a single library check.
	FollowWatchDebounce = 2 * time.Second
)

// # Queue Defaults

const (
	// DefaultPriority is assigned to user-created and follow-list entries.
	// Lower values are dispatched sooner.
	DefaultPriority = 5

	// DefaultMaxRetries bounds automatic and manual retries per entry.
	DefaultMaxRetries = 3
)

// # Backup Lifecycle

const (
	// BackupFilePrefix starts every snapshot file name.
	BackupFilePrefix = "komga_backup_"

	// BackupTimeLayout renders the snapshot timestamp (YYYYMMDD_HHMMSS).
	BackupTimeLayout = "20060102_150405"

	// RestoreLockRetries is how many times the live file is probed for locks
	// before a restore gives up.
	RestoreLockRetries = 15

	// RestoreLockRetryDelay is the pause between lock probes.
	RestoreLockRetryDelay = 1 * time.Second

	// RestoreExitDelay is the grace period between a successful restore and
	// the scheduled process exit that lets the supervisor rebind the store.
	RestoreExitDelay = 2 * time.Second
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAPIKey        = "X-API-Key"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)
