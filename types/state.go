package types

import (
	"sort"
	"sync"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/goccy/go-json"
)

// Bookmark is the per-stream high-water mark
type Bookmark struct {
	ReplicationKey string `json:"replication_key,omitempty"`
	Value          any    `json:"value,omitempty"`
	DeletedValue   any    `json:"deleted_value,omitempty"`
	// Offset counts rows read this run by streams without a replication key
	Offset int64 `json:"-" hash:"ignore"`
	// Pending counts records emitted since the last checkpoint
	Pending int `json:"-" hash:"ignore"`
}

func (b Bookmark) IsZero() bool {
	return b.Value == nil && b.DeletedValue == nil
}

type StreamState struct {
	Stream   string   `json:"stream"`
	Bookmark Bookmark `json:"bookmark"`
}

// State is the combined checkpoint of every stream
type State struct {
	*sync.RWMutex `json:"-"`
	Version       int            `json:"version"`
	Streams       []*StreamState `json:"streams"`
}

func NewState() *State {
	return &State{
		RWMutex: &sync.RWMutex{},
		Version: constants.LatestStateVersion,
		Streams: []*StreamState{},
	}
}

// initMutex is needed for states decoded from files
func (s *State) initMutex() {
	if s.RWMutex == nil {
		s.RWMutex = &sync.RWMutex{}
	}
}

func (s *State) find(streamID string) (*StreamState, bool) {
	for _, stream := range s.Streams {
		if stream.Stream == streamID {
			return stream, true
		}
	}

	return nil, false
}

func (s *State) GetBookmark(streamID string) (Bookmark, bool) {
	s.initMutex()
	s.RLock()
	defer s.RUnlock()

	stream, found := s.find(streamID)
	if !found {
		return Bookmark{}, false
	}

	return stream.Bookmark, true
}

func (s *State) SetBookmark(streamID string, bookmark Bookmark) {
	s.initMutex()
	s.Lock()
	defer s.Unlock()

	// run counters are never part of a checkpoint
	bookmark.Pending, bookmark.Offset = 0, 0
	if stream, found := s.find(streamID); found {
		stream.Bookmark = bookmark
		return
	}

	s.Streams = append(s.Streams, &StreamState{Stream: streamID, Bookmark: bookmark})
}

// Retain drops bookmarks of streams not listed
func (s *State) Retain(streamIDs ...string) {
	s.initMutex()
	s.Lock()
	defer s.Unlock()

	keep := NewSet(streamIDs...)
	filtered := s.Streams[:0]
	for _, stream := range s.Streams {
		if keep.Exists(stream.Stream) {
			filtered = append(filtered, stream)
		}
	}
	s.Streams = filtered
}

// Snapshot returns an independent copy, sorted by stream name
func (s *State) Snapshot() *State {
	s.initMutex()
	s.RLock()
	defer s.RUnlock()

	snapshot := NewState()
	snapshot.Version = s.Version
	for _, stream := range s.Streams {
		copied := *stream
		snapshot.Streams = append(snapshot.Streams, &copied)
	}
	sort.Slice(snapshot.Streams, func(i, j int) bool {
		return snapshot.Streams[i].Stream < snapshot.Streams[j].Stream
	})

	return snapshot
}

func (s *State) Len() int {
	s.initMutex()
	s.RLock()
	defer s.RUnlock()

	return len(s.Streams)
}

func (s *State) MarshalJSON() ([]byte, error) {
	if s.RWMutex != nil {
		s.RLock()
		defer s.RUnlock()
	}

	type Alias State
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(s),
	})
}

// LogState persists a snapshot of the state to the state file
func (s *State) LogState() {
	logger.LogState(s.Snapshot())
}
