package abstract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/olake-salesforce/types"
)

// Tests for core AbstractDriver functionality

func TestNewAbstractDriver(t *testing.T) {
	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{})

	require.NotNil(t, abstractDriver)
	assert.NotNil(t, abstractDriver.driver)
	require.NotNil(t, abstractDriver.State())
	assert.Zero(t, abstractDriver.State().Len())
}

func TestSetupState(t *testing.T) {
	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{})

	state := types.NewState()
	state.SetBookmark("Account", types.Bookmark{ReplicationKey: "SystemModstamp", Value: "2024-01-01T00:00:00.000+0000"})
	abstractDriver.SetupState(state)
	assert.Same(t, state, abstractDriver.State())

	// a missing state file starts from scratch
	abstractDriver.SetupState(nil)
	require.NotNil(t, abstractDriver.State())
	assert.Zero(t, abstractDriver.State().Len())
}

func TestDelegation(t *testing.T) {
	expectedConfig := &MockConfig{}
	expectedSpec := map[string]string{"version": "1.0"}
	setupErr := errors.New("invalid credentials")

	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{
		getConfigRefFunc: func() Config { return expectedConfig },
		specFunc:         func() any { return expectedSpec },
		typeFunc:         func() string { return "salesforce" },
		setupFunc:        func(context.Context) error { return setupErr },
	})

	assert.Equal(t, expectedConfig, abstractDriver.GetConfigRef())
	assert.Equal(t, expectedSpec, abstractDriver.Spec())
	assert.Equal(t, "salesforce", abstractDriver.Type())
	assert.ErrorIs(t, abstractDriver.Setup(context.Background()), setupErr)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		setupErr  error
		listErr   error
		wantErr   string
		wantLists int
	}{
		{name: "lists streams after setup", wantLists: 1},
		{name: "setup failure skips listing", setupErr: errors.New("invalid_grant"), wantErr: "invalid_grant"},
		{name: "listing failure", listErr: errors.New("INVALID_SESSION_ID"), wantErr: "failed to list streams", wantLists: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lists := 0
			abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{
				setupFunc: func(context.Context) error { return tt.setupErr },
				getStreamNamesFunc: func(context.Context) ([]string, error) {
					lists++
					return []string{"Account", "Contact"}, tt.listErr
				},
			})

			err := abstractDriver.Check(context.Background())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantLists, lists)
		})
	}
}
