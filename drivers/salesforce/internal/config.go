package driver

import (
	"fmt"
	"strings"
	"time"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/typeutils"
)

type APIType string

const (
	RestAPI  APIType = "REST"
	BulkAPI  APIType = "BULK"
	Bulk2API APIType = "BULK2"
)

type AuthFlow string

const (
	RefreshTokenFlow AuthFlow = "refresh_token"
	PasswordFlow     AuthFlow = "password"
	AccessTokenFlow  AuthFlow = "access_token"
)

type Config struct {
	APIType APIType `json:"api_type" validate:"omitempty,oneof=REST BULK BULK2"`

	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	// OAuth refresh flow
	RefreshToken string `json:"refresh_token"`
	// password flow
	Username      string `json:"username"`
	Password      string `json:"password"`
	SecurityToken string `json:"security_token"`
	// pre-issued session, used as-is and never refreshed
	AccessToken string `json:"access_token"`

	IsSandbox bool `json:"is_sandbox"`
	// Domain is the My Domain prefix, i.e. https://{domain}.salesforce.com
	Domain      string `json:"domain"`
	InstanceURL string `json:"instance_url" validate:"omitempty,url"`
	LoginURL    string `json:"login_url" validate:"omitempty,url"`
	APIVersion  string `json:"api_version"`
	UserAgent   string `json:"user_agent"`

	StartDate string `json:"start_date" validate:"required" jsonschema:"required,description=Earliest record timestamp to extract"`
	EndDate   string `json:"end_date"`

	MaxWorkers            int      `json:"max_workers" validate:"gte=0"`
	StateMessageThreshold int      `json:"state_message_threshold" validate:"gte=0"`
	StreamsToDiscover     []string `json:"streams_to_discover"`
	FlattenRelationships  *bool    `json:"flatten_relationships"`

	PageSize          int     `json:"page_size" validate:"gte=0,lte=2000"`
	BulkChunkSize     int     `json:"bulk_chunk_size" validate:"gte=0"`
	BulkPollTimeout   int     `json:"bulk_poll_timeout" validate:"gte=0"`
	MaxPageAttempts   int     `json:"max_page_attempts" validate:"gte=0"`
	QuotaPercentTotal float64 `json:"quota_percent_total" validate:"gte=0,lte=100"`
	RequestsPerSecond float64 `json:"requests_per_second" validate:"gte=0"`
	RetryCount        int     `json:"retry_count" validate:"gte=0"`

	startDate time.Time
	endDate   time.Time
}

// ConfigError is fatal at startup
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid salesforce config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (c *Config) Validate() error {
	c.APIType = APIType(strings.ToUpper(strings.TrimSpace(string(c.APIType))))
	if err := utils.Validate(c); err != nil {
		return &ConfigError{Err: err}
	}

	if _, err := c.Flow(); err != nil {
		return &ConfigError{Err: err}
	}

	startDate, err := typeutils.ParseTimestamp(c.StartDate)
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("start_date: %s", err)}
	}
	c.startDate = startDate.UTC()

	if c.EndDate != "" {
		endDate, err := typeutils.ParseTimestamp(c.EndDate)
		if err != nil {
			return &ConfigError{Err: fmt.Errorf("end_date: %s", err)}
		}
		if !endDate.After(startDate) {
			return &ConfigError{Err: fmt.Errorf("end_date[%s] must be after start_date[%s]", c.EndDate, c.StartDate)}
		}
		c.endDate = endDate.UTC()
	}

	if c.APIType == "" || c.APIType == BulkAPI {
		c.APIType = utils.Ternary(c.APIType == "", RestAPI, Bulk2API).(APIType)
	}
	c.APIVersion = utils.Ternary(c.APIVersion == "", constants.DefaultAPIVersion, c.APIVersion).(string)
	if !strings.HasPrefix(c.APIVersion, "v") {
		c.APIVersion = "v" + c.APIVersion
	}

	c.MaxWorkers = utils.Ternary(c.MaxWorkers <= 0, constants.DefaultMaxWorkers, c.MaxWorkers).(int)
	c.StateMessageThreshold = utils.Ternary(c.StateMessageThreshold <= 0, constants.DefaultStateMessageThreshold, c.StateMessageThreshold).(int)
	c.PageSize = utils.Ternary(c.PageSize <= 0, constants.DefaultPageSize, c.PageSize).(int)
	c.BulkChunkSize = utils.Ternary(c.BulkChunkSize <= 0, constants.DefaultBulkChunkSize, c.BulkChunkSize).(int)
	c.BulkPollTimeout = utils.Ternary(c.BulkPollTimeout <= 0, int(constants.DefaultBulkPollTimeout.Seconds()), c.BulkPollTimeout).(int)
	c.MaxPageAttempts = utils.Ternary(c.MaxPageAttempts <= 0, constants.DefaultMaxPageAttempts, c.MaxPageAttempts).(int)
	c.QuotaPercentTotal = utils.Ternary(c.QuotaPercentTotal <= 0, constants.DefaultQuotaPercentTotal, c.QuotaPercentTotal).(float64)
	c.RequestsPerSecond = utils.Ternary(c.RequestsPerSecond <= 0, constants.DefaultRequestsPerSecond, c.RequestsPerSecond).(float64)
	c.RetryCount = utils.Ternary(c.RetryCount <= 0, constants.DefaultRetryCount, c.RetryCount).(int)
	if c.FlattenRelationships == nil {
		flatten := true
		c.FlattenRelationships = &flatten
	}

	return nil
}

// Flow picks the authentication flow; refresh token wins over password
// which wins over a static access token
func (c *Config) Flow() (AuthFlow, error) {
	switch {
	case c.RefreshToken != "":
		if c.ClientID == "" || c.ClientSecret == "" {
			return "", fmt.Errorf("client_id and client_secret are required for the refresh token flow")
		}
		return RefreshTokenFlow, nil
	case c.Username != "" && c.Password != "":
		if c.ClientID == "" || c.ClientSecret == "" {
			return "", fmt.Errorf("client_id and client_secret are required for the password flow")
		}
		return PasswordFlow, nil
	case c.AccessToken != "":
		if c.InstanceURL == "" && c.Domain == "" {
			return "", fmt.Errorf("instance_url or domain is required with a static access_token")
		}
		return AccessTokenFlow, nil
	default:
		return "", fmt.Errorf("no credentials configured; set refresh_token, username/password or access_token")
	}
}

// LoginHost returns the OAuth authorization server base URL
func (c *Config) LoginHost() string {
	switch {
	case c.LoginURL != "":
		return strings.TrimSuffix(c.LoginURL, "/")
	case c.IsSandbox:
		return "https://test.salesforce.com"
	default:
		return "https://login.salesforce.com"
	}
}

// ConfiguredInstanceURL returns the instance override, if any
func (c *Config) ConfiguredInstanceURL() string {
	switch {
	case c.InstanceURL != "":
		return strings.TrimSuffix(c.InstanceURL, "/")
	case c.Domain != "":
		return fmt.Sprintf("https://%s.salesforce.com", c.Domain)
	default:
		return ""
	}
}

func (c *Config) Mode() types.ExtractionMode {
	return utils.Ternary(c.APIType == RestAPI, types.RestMode, types.BulkMode).(types.ExtractionMode)
}

func (c *Config) Flatten() bool {
	return c.FlattenRelationships == nil || *c.FlattenRelationships
}

func (c *Config) StartTime() time.Time {
	return c.startDate
}

// EndTime bounds every query of the run; it defaults to the run start
func (c *Config) EndTime(runStart time.Time) time.Time {
	if c.endDate.IsZero() {
		return runStart.UTC()
	}

	return c.endDate
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.BulkPollTimeout) * time.Second
}
