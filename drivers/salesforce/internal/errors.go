package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/datazip-inc/olake-salesforce/constants"
)

// AuthError aborts the whole run: credentials were rejected, or a request
// was still unauthorized after one re-authentication
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("salesforce authentication failed: %s", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == constants.ErrRunFatal
}

// RateLimitExceeded surfaces only once the governor gave up waiting for budget
type RateLimitExceeded struct {
	Used, Limit int64
	Waited      time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("salesforce api quota exhausted (%d/%d used) after waiting %s", e.Used, e.Limit, e.Waited)
}

type JobTimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("bulk job[%s] did not complete within %s", e.JobID, e.Timeout)
}

// JobExpiredError is returned when results vanish remotely before retrieval
type JobExpiredError struct {
	JobID string
}

func (e *JobExpiredError) Error() string {
	return fmt.Sprintf("bulk job[%s] results expired before retrieval", e.JobID)
}

type JobFailedError struct {
	JobID   string
	State   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("bulk job[%s] ended in state %s: %s", e.JobID, e.State, e.Message)
}

type PageFetchError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("failed to fetch page %d after %d attempts: %s", e.Page, e.Attempts, e.Err)
}

func (e *PageFetchError) Unwrap() error {
	return e.Err
}

// APIError is a non-success response decoded from Salesforce's error body
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce api error %d [%s] on %s: %s", e.StatusCode, e.Code, e.URL, e.Message)
}

// Transient reports whether the same request may succeed when repeated
func (e *APIError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests ||
		// discovery bursts occasionally get a bare 406 back
		(e.StatusCode == http.StatusNotAcceptable && e.Code == "CustomNotAcceptable")
}

// IsTransient classifies errors a page or poll retry may absorb
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var authErr *AuthError
	if errors.As(err, &authErr) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "connection reset")
}
