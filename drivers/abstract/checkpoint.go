package abstract

import (
	"context"
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure"

	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/datazip-inc/olake-salesforce/utils/typeutils"
)

// CheckpointAggregator owns the combined checkpoint. Workers only reach it
// through Commit and Flush; a flush writes a snapshot, so the sink never
// observes a checkpoint that is still being merged.
type CheckpointAggregator struct {
	mu       sync.Mutex
	state    *types.State
	sink     destination.Sink
	lastHash uint64
	flushes  int
}

func NewCheckpointAggregator(state *types.State, sink destination.Sink) *CheckpointAggregator {
	aggregator := &CheckpointAggregator{state: state, sink: sink}
	// the prior checkpoint is already durable
	aggregator.lastHash, _ = hashState(state.Snapshot())

	return aggregator
}

// Commit merges bookmark into the combined checkpoint and flushes it when
// the content changed
func (c *CheckpointAggregator) Commit(ctx context.Context, streamID string, bookmark types.Bookmark) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SetBookmark(streamID, c.merge(streamID, bookmark))
	return c.flush(ctx)
}

func (c *CheckpointAggregator) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.flush(ctx)
}

// Flushes counts checkpoints written to the sink
func (c *CheckpointAggregator) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.flushes
}

// merge refuses to move a stream's values backwards
func (c *CheckpointAggregator) merge(streamID string, next types.Bookmark) types.Bookmark {
	prev, found := c.state.GetBookmark(streamID)
	if !found || prev.ReplicationKey != next.ReplicationKey {
		return next
	}

	if prev.Value != nil && (next.Value == nil || typeutils.Compare(next.Value, prev.Value) < 0) {
		logger.Warnf("ignoring regressing bookmark of stream[%s]: %v < %v", streamID, next.Value, prev.Value)
		next.Value = prev.Value
	}
	if prev.DeletedValue != nil && (next.DeletedValue == nil || typeutils.Compare(next.DeletedValue, prev.DeletedValue) < 0) {
		next.DeletedValue = prev.DeletedValue
	}

	return next
}

func (c *CheckpointAggregator) flush(ctx context.Context) error {
	snapshot := c.state.Snapshot()
	hash, err := hashState(snapshot)
	if err != nil {
		return err
	}
	if hash == c.lastHash {
		return nil
	}

	if err := c.sink.WriteState(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to write checkpoint: %s", err)
	}
	c.lastHash = hash
	c.flushes++
	telemetry.Checkpoints.Inc()

	return nil
}

func hashState(state *types.State) (uint64, error) {
	hash, err := hashstructure.Hash(state.Streams, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to hash checkpoint: %s", err)
	}

	return hash, nil
}
