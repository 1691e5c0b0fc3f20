package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

const maxErrorBody = 64 << 10

// Request describes one Salesforce API call; Path is either relative to the
// instance URL or an absolute URL
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Header  map[string]string
	Surface string
}

// Client sends authenticated, governed requests. 401s are answered with a
// single re-authentication; rate limited responses wait out Retry-After.
// Server errors are returned to the caller, which owns the retry policy.
type Client struct {
	httpClient *http.Client
	session    *Session
	governor   *Governor
	apiVersion string
	userAgent  string
	retryCount int
}

func NewClient(httpClient *http.Client, session *Session, governor *Governor, config *Config) *Client {
	return &Client{
		httpClient: httpClient,
		session:    session,
		governor:   governor,
		apiVersion: config.APIVersion,
		userAgent:  config.UserAgent,
		retryCount: config.RetryCount,
	}
}

// DataPath joins parts under /services/data/{version}
func (c *Client) DataPath(parts ...string) string {
	return "/services/data/" + c.apiVersion + "/" + strings.Join(parts, "/")
}

func (c *Client) Do(ctx context.Context, request Request) (*http.Response, error) {
	var payload []byte
	if request.Body != nil {
		encoded, err := json.Marshal(request.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %s", err)
		}
		payload = encoded
	}

	reauthenticated := false
	throttled := 0
	for {
		if err := c.governor.Wait(ctx); err != nil {
			return nil, err
		}

		token, instanceURL, err := c.session.Credential(ctx)
		if err != nil {
			return nil, err
		}

		httpRequest, err := c.newRequest(ctx, request, instanceURL, token, payload)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(httpRequest)
		if err != nil {
			telemetry.APICalls.WithLabelValues(request.Surface, "error").Inc()
			return nil, err
		}
		c.governor.Observe(resp.Header)
		telemetry.APICalls.WithLabelValues(request.Surface, fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			drain(resp)
			if reauthenticated {
				return nil, &AuthError{Err: fmt.Errorf("%s %s still unauthorized after re-authentication", request.Method, request.Path)}
			}
			logger.Warnf("session rejected on %s, re-authenticating", request.Path)
			reauthenticated = true
			c.session.Invalidate(token)
			continue
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
			retryAfter := resp.Header.Get(constants.RetryAfterHeader)
			apiErr := decodeAPIError(resp, httpRequest.URL.String())
			if resp.StatusCode == http.StatusForbidden && apiErr.Code != "REQUEST_LIMIT_EXCEEDED" {
				return nil, apiErr
			}
			throttled++
			if throttled > c.retryCount {
				used, limit := c.governor.Usage()
				return nil, &RateLimitExceeded{Used: used, Limit: limit}
			}
			if err := c.governor.Throttle(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= http.StatusBadRequest:
			return nil, decodeAPIError(resp, httpRequest.URL.String())
		}

		return resp, nil
	}
}

// JSON sends request and decodes the response with numbers kept exact
func (c *Client) JSON(ctx context.Context, request Request, out any) error {
	resp, err := c.Do(ctx, request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %s", request.Path, err)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, request Request, instanceURL, token string, payload []byte) (*http.Request, error) {
	target := request.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = instanceURL + target
	}
	if len(request.Query) > 0 {
		target += "?" + request.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %s", err)
	}

	httpRequest.Header.Set("Authorization", "Bearer "+token)
	httpRequest.Header.Set("Accept", "application/json")
	if payload != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpRequest.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range request.Header {
		httpRequest.Header.Set(key, value)
	}

	return httpRequest, nil
}

// decodeAPIError consumes and closes the body
func decodeAPIError(resp *http.Response, target string) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode, URL: target}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var restErrors []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &restErrors); err == nil && len(restErrors) > 0 {
		apiErr.Code = restErrors[0].ErrorCode
		apiErr.Message = restErrors[0].Message
		return apiErr
	}

	var oauthError struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthError); err == nil && oauthError.Error != "" {
		apiErr.Code = oauthError.Error
		apiErr.Message = oauthError.Description
		return apiErr
	}

	apiErr.Code = http.StatusText(resp.StatusCode)
	apiErr.Message = strings.TrimSpace(string(body))
	if resp.StatusCode == http.StatusNotAcceptable && strings.Contains(apiErr.Message, "CustomNotAcceptable") {
		apiErr.Code = "CustomNotAcceptable"
	}

	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
