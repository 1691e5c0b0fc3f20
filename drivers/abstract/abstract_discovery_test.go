package abstract

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/types"
)

func TestDiscoverSortsStreams(t *testing.T) {
	var inFlight, peak atomic.Int32
	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{
		maxConnectionsFunc: func() int { return 2 },
		getStreamNamesFunc: func(context.Context) ([]string, error) {
			return []string{"Opportunity", "Account", "Lead", "Contact"}, nil
		},
		produceSchemaFunc: func(_ context.Context, name string) (*types.Stream, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				seen := peak.Load()
				if current <= seen || peak.CompareAndSwap(seen, current) {
					break
				}
			}
			return types.NewStream(name, types.BulkMode), nil
		},
	})

	streams, err := abstractDriver.Discover(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(streams))
	for _, stream := range streams {
		names = append(names, stream.Name)
	}
	assert.Equal(t, []string{"Account", "Contact", "Lead", "Opportunity"}, names)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDiscoverListingFailure(t *testing.T) {
	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{
		getStreamNamesFunc: func(context.Context) ([]string, error) {
			return nil, errors.New("INVALID_SESSION_ID")
		},
	})

	_, err := abstractDriver.Discover(context.Background())
	assert.ErrorContains(t, err, "INVALID_SESSION_ID")
}

func TestDiscoverRetriesTransientDescribeFailures(t *testing.T) {
	var calls atomic.Int32
	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{
		maxRetriesFunc: func() int { return 3 },
		getStreamNamesFunc: func(context.Context) ([]string, error) {
			return []string{"Account"}, nil
		},
		produceSchemaFunc: func(_ context.Context, name string) (*types.Stream, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("503 service unavailable")
			}
			return types.NewStream(name, types.RestMode), nil
		},
	})

	streams, err := abstractDriver.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, streams, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDiscoverStopsOnNonRetryableFailure(t *testing.T) {
	var calls atomic.Int32
	abstractDriver := NewAbstractDriver(context.Background(), &MockDriver{
		maxRetriesFunc: func() int { return 5 },
		getStreamNamesFunc: func(context.Context) ([]string, error) {
			return []string{"Secret__c"}, nil
		},
		produceSchemaFunc: func(context.Context, string) (*types.Stream, error) {
			calls.Add(1)
			return nil, fmt.Errorf("%w: INSUFFICIENT_ACCESS", constants.ErrNonRetryable)
		},
	})

	_, err := abstractDriver.Discover(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, constants.ErrNonRetryable)
	assert.Equal(t, int32(1), calls.Load())
}
