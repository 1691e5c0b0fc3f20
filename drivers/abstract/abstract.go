package abstract

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

type AbstractDriver struct { //nolint:gosec,revive
	driver DriverInterface
	state  *types.State
}

func NewAbstractDriver(_ context.Context, driver DriverInterface) *AbstractDriver {
	return &AbstractDriver{
		driver: driver,
		state:  types.NewState(),
	}
}

// SetupState installs the prior checkpoint; a nil state starts every stream
// from start_date
func (a *AbstractDriver) SetupState(state *types.State) {
	if state == nil {
		state = types.NewState()
	}
	a.state = state
}

func (a *AbstractDriver) State() *types.State {
	return a.state
}

func (a *AbstractDriver) GetConfigRef() Config {
	return a.driver.GetConfigRef()
}

func (a *AbstractDriver) Spec() any {
	return a.driver.Spec()
}

func (a *AbstractDriver) Type() string {
	return a.driver.Type()
}

func (a *AbstractDriver) Setup(ctx context.Context) error {
	return a.driver.Setup(ctx)
}

// Check authenticates and lists the streams visible to the credentials
func (a *AbstractDriver) Check(ctx context.Context) error {
	if err := a.driver.Setup(ctx); err != nil {
		return err
	}

	names, err := a.driver.GetStreamNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list streams: %s", err)
	}
	logger.Infof("connection check found %d streams", len(names))

	return nil
}

// Discover describes every stream concurrently, bounded by MaxConnections;
// each describe is retried MaxRetries times
func (a *AbstractDriver) Discover(ctx context.Context) ([]*types.Stream, error) {
	names, err := a.driver.GetStreamNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream names: %s", err)
	}

	var (
		mu      sync.Mutex
		streams = make([]*types.Stream, 0, len(names))
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, a.driver.MaxConnections()))
	for _, name := range names {
		group.Go(func() error {
			var stream *types.Stream
			err := utils.RetryOnBackoff(groupCtx, a.driver.MaxRetries(), time.Second, func() error {
				var err error
				stream, err = a.driver.ProduceSchema(groupCtx, name)
				return err
			})
			if err != nil {
				return fmt.Errorf("%w: failed to produce schema for stream %s: %s", constants.ErrNonRetryable, name, err)
			}

			mu.Lock()
			streams = append(streams, stream)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(streams, func(i, j int) bool { return streams[i].Name < streams[j].Name })
	logger.Infof("discovered %d streams", len(streams))

	return streams, nil
}
