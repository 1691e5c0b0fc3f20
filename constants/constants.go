package constants

import (
	"errors"
	"time"
)

type DriverType string

const Salesforce DriverType = "salesforce"

const (
	ParquetFileExt = "parquet"
	StateFileName  = "state.json"

	// viper keys shared across protocol, logger and utils
	ConfigFolder  = "CONFIG_FOLDER"
	StatePath     = "STATE_PATH"
	StreamsPath   = "STREAMS_PATH"
	EncryptionKey = "ENCRYPTION_KEY"
	NoSave        = "NO_SAVE"
	LogLevel      = "LOG_LEVEL"
)

const (
	DefaultMaxWorkers            = 8
	DefaultStateMessageThreshold = 1000
	DefaultRetryCount            = 3
	DefaultAPIVersion            = "v60.0"
	DefaultPageSize              = 2000
	DefaultBulkChunkSize         = 50000
	DefaultBulkPollTimeout       = time.Hour
	DefaultMaxPageAttempts       = 3
	DefaultQuotaPercentTotal     = 80.0
	DefaultRequestsPerSecond     = 10.0

	BulkPollInitialInterval = time.Second
	BulkPollMaxInterval     = 30 * time.Second

	// Salesforce does not return an expiry with access tokens; sessions last
	// at least this long under the most restrictive org policy.
	SessionLifetime = 15 * time.Minute

	// the deleted records endpoint only serves the last 30 days
	DeletedRecordsWindow = 30 * 24 * time.Hour
)

const (
	LimitInfoHeader    = "Sforce-Limit-Info"
	LocatorHeader      = "Sforce-Locator"
	QueryOptionsHeader = "Sforce-Query-Options"
	RetryAfterHeader   = "Retry-After"
)

var (
	// ErrRunFatal marks errors that must stop every running stream
	ErrRunFatal = errors.New("run-fatal error")
	// ErrNonRetryable marks errors a retry loop must not repeat
	ErrNonRetryable = errors.New("non-retryable error")
)
