package types

import (
	"testing"

	"github.com/datazip-inc/olake-salesforce/constants"
	json "github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// prevent LogState() from writing files during tests
	viper.Set(constants.NoSave, true)
}

func TestState_SetAndGetBookmark(t *testing.T) {
	s := NewState()

	_, found := s.GetBookmark("Lead")
	assert.False(t, found)

	s.SetBookmark("Lead", Bookmark{ReplicationKey: "SystemModstamp", Value: "2024-01-01T00:00:00.000Z", Pending: 7})
	got, found := s.GetBookmark("Lead")
	require.True(t, found)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", got.Value)
	assert.Zero(t, got.Pending, "pending count is never stored")

	s.SetBookmark("Lead", Bookmark{ReplicationKey: "SystemModstamp", Value: "2024-02-01T00:00:00.000Z"})
	assert.Equal(t, 1, s.Len())
}

func TestState_SnapshotIsIndependent(t *testing.T) {
	s := NewState()
	s.SetBookmark("b", Bookmark{Value: "2"})
	s.SetBookmark("a", Bookmark{Value: "1"})

	snap := s.Snapshot()
	s.SetBookmark("a", Bookmark{Value: "9"})

	require.Len(t, snap.Streams, 2)
	assert.Equal(t, "a", snap.Streams[0].Stream, "snapshot is sorted by stream")
	assert.Equal(t, "1", snap.Streams[0].Bookmark.Value)
}

func TestState_Retain(t *testing.T) {
	s := NewState()
	s.SetBookmark("a", Bookmark{Value: "1"})
	s.SetBookmark("b", Bookmark{Value: "2"})

	s.Retain("b")
	_, found := s.GetBookmark("a")
	assert.False(t, found)
	assert.Equal(t, 1, s.Len())
}

func TestState_JSONRoundTrip(t *testing.T) {
	s := NewState()
	s.SetBookmark("Lead", Bookmark{ReplicationKey: "SystemModstamp", Value: "2024-01-01T00:00:00.000Z", DeletedValue: "2024-01-02T00:00:00.000Z"})
	s.SetBookmark("Org", Bookmark{Offset: 3})

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, constants.LatestStateVersion, decoded.Version)

	got, found := decoded.GetBookmark("Lead")
	require.True(t, found)
	assert.Equal(t, "2024-01-02T00:00:00.000Z", got.DeletedValue)

	// keyless streams are checkpointed without their run counters
	got, found = decoded.GetBookmark("Org")
	require.True(t, found)
	assert.Zero(t, got.Offset)
	assert.Nil(t, got.Value)
	assert.NotContains(t, string(data), "offset")
}
