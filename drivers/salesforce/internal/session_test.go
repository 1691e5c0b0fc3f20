package driver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/olake-salesforce/constants"
)

func newTestSession(t *testing.T, fake *fakeSalesforce, config *Config) *Session {
	t.Helper()

	require.NoError(t, config.Validate())
	session, err := NewSession(config, fake.server.Client())
	require.NoError(t, err)
	return session
}

func TestSessionRefreshTokenFlow(t *testing.T) {
	fake := newFakeSalesforce(t)
	session := newTestSession(t, fake, fake.config())
	ctx := context.Background()

	token, instanceURL, err := session.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, fake.server.URL, instanceURL)

	// cached until invalidated
	token, _, err = session.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, fake.tokensIssued())

	session.Invalidate("token-1")
	token, _, err = session.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)

	// a stale token reported late must not drop the fresh one
	session.Invalidate("token-1")
	token, _, err = session.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, 2, session.Refreshes())
}

func TestSessionPasswordFlow(t *testing.T) {
	fake := newFakeSalesforce(t)
	var form map[string]string
	fake.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"grant_type": r.PostForm.Get("grant_type"),
			"username":   r.PostForm.Get("username"),
			"password":   r.PostForm.Get("password"),
			"client_id":  r.PostForm.Get("client_id"),
		}
		fake.issueToken(w)
	}

	config := fake.config()
	config.RefreshToken = ""
	config.Username = "integration@acme.com"
	config.Password = "hunter2"
	config.SecurityToken = "XYZ"
	session := newTestSession(t, fake, config)

	_, _, err := session.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "password", form["grant_type"])
	assert.Equal(t, "integration@acme.com", form["username"])
	assert.Equal(t, "hunter2XYZ", form["password"])
	assert.Equal(t, "client-id", form["client_id"])
}

func TestSessionRejectedCredentials(t *testing.T) {
	fake := newFakeSalesforce(t)
	fake.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "expired access/refresh token"})
	}
	session := newTestSession(t, fake, fake.config())

	_, _, err := session.Credential(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.True(t, errors.Is(err, constants.ErrRunFatal))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestSessionStaticAccessToken(t *testing.T) {
	fake := newFakeSalesforce(t)
	config := &Config{AccessToken: "00Dstatic", InstanceURL: fake.server.URL, StartDate: "2024-01-01T00:00:00Z"}
	session := newTestSession(t, fake, config)

	token, instanceURL, err := session.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "00Dstatic", token)
	assert.Equal(t, fake.server.URL, instanceURL)
	assert.Zero(t, fake.tokensIssued())

	session.Invalidate("00Dstatic")
	_, _, err = session.Credential(context.Background())
	assert.True(t, errors.Is(err, constants.ErrRunFatal))
}

func TestSessionConcurrentLoginsCollapse(t *testing.T) {
	fake := newFakeSalesforce(t)
	session := newTestSession(t, fake, fake.config())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := session.Credential(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fake.tokensIssued())
}

func TestSessionMissingInstanceURL(t *testing.T) {
	fake := newFakeSalesforce(t)
	fake.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "abc", "token_type": "Bearer"})
	}
	session := newTestSession(t, fake, fake.config())

	_, _, err := session.Credential(context.Background())
	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}
