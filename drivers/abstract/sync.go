package abstract

import (
	"context"
	"fmt"

	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/datazip-inc/olake-salesforce/utils/typeutils"
)

const deletedDateKey = "deletedDate"

// syncStream extracts one stream end to end. Records reach the sink before
// the bookmark covering them is committed; on error nothing after the last
// commit is claimed.
func (a *AbstractDriver) syncStream(ctx context.Context, stream types.StreamInterface, sink destination.Sink, aggregator *CheckpointAggregator) error {
	start, _ := a.state.GetBookmark(stream.ID())
	tracker := NewTracker(stream, start, a.driver.StateThreshold())
	flatten := a.driver.Flatten()

	emit := func(ctx context.Context, raw map[string]any) (types.Record, error) {
		record, warnings := typeutils.TranslateRecord(stream, raw, flatten)
		for _, warning := range warnings {
			logger.Warn(warning.Error())
			telemetry.TranslationWarnings.WithLabelValues(stream.ID()).Inc()
		}

		if err := sink.WriteRecord(ctx, stream.ID(), record); err != nil {
			return nil, fmt.Errorf("failed to write record: %s", err)
		}
		telemetry.RecordsEmitted.WithLabelValues(stream.ID()).Inc()

		return record, nil
	}

	commitIfDue := func(ctx context.Context) error {
		if !tracker.ShouldCheckpoint() {
			return nil
		}
		if err := aggregator.Commit(ctx, stream.ID(), tracker.Bookmark()); err != nil {
			return err
		}
		tracker.Checkpointed()
		return nil
	}

	from := tracker.Bookmark().Value
	logger.Infof("starting sync of stream[%s] in %s mode from %v", stream.ID(), stream.Mode(), from)
	err := a.driver.StreamRecords(ctx, stream, from, func(ctx context.Context, raw map[string]any) error {
		record, err := emit(ctx, raw)
		if err != nil {
			return err
		}
		tracker.Advance(record)
		return commitIfDue(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to stream records of %s: %w", stream.ID(), err)
	}

	if stream.SupportsDeleted() {
		since := start.DeletedValue
		if since == nil {
			since = from
		}
		err := a.driver.StreamDeleted(ctx, stream, since, func(ctx context.Context, raw map[string]any) error {
			record, err := emit(ctx, raw)
			if err != nil {
				return err
			}
			tracker.AdvanceDeleted(record[deletedDateKey])
			return commitIfDue(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to stream deleted records of %s: %w", stream.ID(), err)
		}
	}

	if err := aggregator.Commit(ctx, stream.ID(), tracker.Bookmark()); err != nil {
		return err
	}
	tracker.Checkpointed()
	logger.Infof("finished sync of stream[%s], bookmark %v", stream.ID(), tracker.Bookmark().Value)

	return nil
}
