package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// Session owns the bearer credential shared by every worker. Logins are
// serialized on the mutex so concurrent 401s cause a single refresh.
type Session struct {
	mu sync.Mutex

	config *Config
	flow   AuthFlow
	client *http.Client
	now    func() time.Time

	accessToken string
	instanceURL string
	expiry      time.Time
	refreshes   int
	// a rejected static token cannot be replaced
	staticRevoked bool
}

func NewSession(config *Config, client *http.Client) (*Session, error) {
	flow, err := config.Flow()
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	return &Session{
		config: config,
		flow:   flow,
		client: client,
		now:    time.Now,
	}, nil
}

// Credential returns a bearer token and the instance URL it is valid for,
// logging in when no unexpired token is cached
func (s *Session) Credential(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && s.now().Before(s.expiry) {
		return s.accessToken, s.instanceURL, nil
	}

	if err := s.login(ctx); err != nil {
		return "", "", err
	}

	return s.accessToken, s.instanceURL, nil
}

// Invalidate drops the cached token if it is still the one that failed;
// a token already replaced by another worker is left alone
func (s *Session) Invalidate(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != stale {
		return
	}

	s.accessToken = ""
	s.expiry = time.Time{}
	if s.flow == AccessTokenFlow {
		s.staticRevoked = true
	}
}

// Refreshes counts completed logins
func (s *Session) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refreshes
}

func (s *Session) login(ctx context.Context) error {
	if s.flow == AccessTokenFlow {
		if s.staticRevoked {
			return &AuthError{Err: fmt.Errorf("configured access_token was rejected and cannot be refreshed")}
		}
		s.accessToken = s.config.AccessToken
		s.instanceURL = s.config.ConfiguredInstanceURL()
		s.expiry = s.now().Add(constants.SessionLifetime)
		s.refreshes++
		return nil
	}

	conf := &oauth2.Config{
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.config.LoginHost() + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	var (
		token *oauth2.Token
		err   error
	)
	switch s.flow {
	case RefreshTokenFlow:
		logger.Info("attempting salesforce login via OAuth2 refresh token")
		token, err = conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.config.RefreshToken}).Token()
	case PasswordFlow:
		logger.Info("attempting salesforce login via username/password")
		token, err = conf.PasswordCredentialsToken(ctx, s.config.Username, s.config.Password+s.config.SecurityToken)
	}
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return &AuthError{Err: fmt.Errorf("token endpoint rejected credentials: %s", strings.TrimSpace(string(retrieveErr.Body)))}
		}
		return fmt.Errorf("failed to reach token endpoint: %w", err)
	}

	instanceURL := s.config.ConfiguredInstanceURL()
	if instanceURL == "" {
		instanceURL, _ = token.Extra("instance_url").(string)
		instanceURL = strings.TrimSuffix(instanceURL, "/")
	}
	if instanceURL == "" {
		return &AuthError{Err: fmt.Errorf("token response carried no instance_url")}
	}

	s.accessToken = token.AccessToken
	s.instanceURL = instanceURL
	s.expiry = token.Expiry
	if s.expiry.IsZero() {
		s.expiry = s.now().Add(constants.SessionLifetime)
	}
	s.refreshes++
	logger.Infof("salesforce login successful, instance[%s]", instanceURL)

	return nil
}
