package abstract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/datazip-inc/olake-salesforce/utils/safego"
)

// PartialSyncError reports streams excluded from an otherwise successful run
type PartialSyncError struct {
	Failed []string
	Err    error
}

func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("%d stream(s) failed [%s]: %s", len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialSyncError) Unwrap() error {
	return e.Err
}

// Read syncs streams on a pool of MaxConnections workers. Streams live in an
// arena; workers pull indices from a closed queue so no stream is held by
// two workers. A failing stream is dropped and the rest continue; run-fatal
// errors and cancellation stop every worker.
func (a *AbstractDriver) Read(ctx context.Context, sink destination.Sink, streams []types.StreamInterface) error {
	if len(streams) == 0 {
		return nil
	}

	aggregator := NewCheckpointAggregator(a.state, sink)
	queue := make(chan int, len(streams))
	for idx := range streams {
		queue <- idx
	}
	close(queue)

	var (
		mu       sync.Mutex
		failed   []string
		failures error
	)
	workers := min(max(1, a.driver.MaxConnections()), len(streams))
	group, groupCtx := errgroup.WithContext(ctx)
	for worker := 0; worker < workers; worker++ {
		threadID := utils.ULID()
		group.Go(func() error {
			for idx := range queue {
				if err := groupCtx.Err(); err != nil {
					return err
				}

				stream := streams[idx]
				logger.Debugf("thread[%s] picked stream[%s]", threadID, stream.ID())
				err := safego.Guard(func() error {
					return a.syncStream(groupCtx, stream, sink, aggregator)
				})
				if err == nil {
					continue
				}
				if errors.Is(err, constants.ErrRunFatal) || groupCtx.Err() != nil {
					return err
				}

				logger.Warnf("stream[%s] failed and is excluded from this run: %s", stream.ID(), err)
				telemetry.StreamFailures.WithLabelValues(stream.ID()).Inc()
				mu.Lock()
				failed = append(failed, stream.ID())
				failures = multierror.Append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if err := aggregator.Flush(ctx); err != nil {
		return err
	}
	logger.Infof("sync finished: %d checkpoints flushed, %d of %d streams failed", aggregator.Flushes(), len(failed), len(streams))

	if len(failed) > 0 {
		return &PartialSyncError{Failed: failed, Err: failures}
	}

	return nil
}
