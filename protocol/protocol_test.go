package protocol

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/olake-salesforce/types"
)

func TestClearBookmarks(t *testing.T) {
	state := types.NewState()
	for _, name := range []string{"Account", "Contact", "Lead"} {
		state.SetBookmark(name, types.Bookmark{ReplicationKey: "SystemModstamp", Value: "2024-02-01T00:00:00.000+0000"})
	}

	account := types.NewStream("Account", types.BulkMode).Wrap()
	opportunity := types.NewStream("Opportunity", types.BulkMode).Wrap()

	cleared := clearBookmarks(state, []types.StreamInterface{account, opportunity})

	assert.Equal(t, 1, cleared)
	assert.Equal(t, 2, state.Len())
	_, found := state.GetBookmark("Account")
	assert.False(t, found)
	_, found = state.GetBookmark("Lead")
	assert.True(t, found)
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()

	missing, err := loadState(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, missing.Len())

	empty, err := loadState("")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": 1,
		"streams": [
			{"stream": "Account", "bookmark": {"replication_key": "SystemModstamp", "value": "2024-02-01T00:00:00.000+0000"}},
			{"stream": "RecordType", "bookmark": {"offset": 12}}
		]
	}`), 0o600))

	loaded, err := loadState(path)
	require.NoError(t, err)
	bookmark, found := loaded.GetBookmark("Account")
	require.True(t, found)
	assert.Equal(t, "2024-02-01T00:00:00.000+0000", bookmark.Value)
	// offsets written by older runs are dropped
	keyless, found := loaded.GetBookmark("RecordType")
	require.True(t, found)
	assert.Zero(t, keyless.Offset)

	// loaded states are usable concurrently
	loaded.SetBookmark("Lead", types.Bookmark{Offset: 1})
	assert.Equal(t, 3, loaded.Len())

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "streams": []}`), 0o600))
	_, err = loadState(path)
	assert.ErrorContains(t, err, "newer than supported")

	require.NoError(t, os.WriteFile(path, []byte(`{"streams": [`), 0o600))
	_, err = loadState(path)
	assert.Error(t, err)
}

func TestSpecSchema(t *testing.T) {
	type sampleConfig struct {
		StartDate  string `json:"start_date" jsonschema:"required,description=Earliest record to extract"`
		MaxWorkers int    `json:"max_workers,omitempty"`
	}

	spec, err := specSchema(sampleConfig{})
	require.NoError(t, err)

	assert.Equal(t, "object", spec["type"])
	properties, ok := spec["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "start_date")
	assert.Contains(t, properties, "max_workers")
	assert.Equal(t, []any{"start_date"}, spec["required"])
}

func TestConnectionStatus(t *testing.T) {
	succeeded := connectionStatus(nil)
	assert.Equal(t, types.ConnectionStatusMessage, succeeded.Type)
	assert.Equal(t, types.ConnectionSucceed, succeeded.ConnectionStatus.Status)
	assert.Empty(t, succeeded.ConnectionStatus.Message)

	failed := connectionStatus(errors.New("invalid_grant: expired refresh token"))
	assert.Equal(t, types.ConnectionFailed, failed.ConnectionStatus.Status)
	assert.Equal(t, "invalid_grant: expired refresh token", failed.ConnectionStatus.Message)
}
