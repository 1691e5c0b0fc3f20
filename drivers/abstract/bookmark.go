package abstract

import (
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/datazip-inc/olake-salesforce/utils/typeutils"
)

// Tracker holds the high-water mark of one stream during a run. It is owned
// by a single worker and never shared.
type Tracker struct {
	stream    types.StreamInterface
	cursor    string
	threshold int
	// bulk results arrive as one unit; only the terminal checkpoint counts
	terminalOnly bool
	bookmark     types.Bookmark
}

func NewTracker(stream types.StreamInterface, start types.Bookmark, threshold int) *Tracker {
	cursor := stream.Cursor()
	bookmark := start
	bookmark.Pending = 0

	if bookmark.ReplicationKey != "" && bookmark.ReplicationKey != cursor {
		logger.Warnf("replication key of stream[%s] changed from %s to %s, resetting bookmark", stream.ID(), bookmark.ReplicationKey, cursor)
		bookmark.Value = nil
	}
	bookmark.ReplicationKey = cursor
	if cursor == "" {
		// keyless streams are re-read in full; the offset counts this run only
		bookmark.Offset = 0
	}

	return &Tracker{
		stream:       stream,
		cursor:       cursor,
		threshold:    max(1, threshold),
		terminalOnly: stream.Mode() == types.BulkMode,
		bookmark:     bookmark,
	}
}

// Advance accounts for one emitted record; the value only moves forward
func (t *Tracker) Advance(record types.Record) {
	t.bookmark.Pending++
	if t.cursor == "" {
		t.bookmark.Offset++
		return
	}

	value, found := record[t.cursor]
	if !found || value == nil {
		return
	}
	if t.bookmark.Value == nil || typeutils.Compare(value, t.bookmark.Value) > 0 {
		t.bookmark.Value = value
	}
}

// AdvanceDeleted moves the deleted-records sub-bookmark
func (t *Tracker) AdvanceDeleted(value any) {
	t.bookmark.Pending++
	if value == nil {
		return
	}
	if t.bookmark.DeletedValue == nil || typeutils.Compare(value, t.bookmark.DeletedValue) > 0 {
		t.bookmark.DeletedValue = value
	}
}

func (t *Tracker) ShouldCheckpoint() bool {
	return !t.terminalOnly && t.bookmark.Pending >= t.threshold
}

func (t *Tracker) Checkpointed() {
	t.bookmark.Pending = 0
}

func (t *Tracker) Bookmark() types.Bookmark {
	return t.bookmark
}
