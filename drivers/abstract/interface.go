package abstract

import (
	"context"

	"github.com/datazip-inc/olake-salesforce/types"
)

// RecordFn receives raw source rows in source order
type RecordFn func(ctx context.Context, row map[string]any) error

type Config interface {
	Validate() error
}

type DriverInterface interface {
	GetConfigRef() Config
	Spec() any
	Type() string
	// specific to test & setup
	Setup(ctx context.Context) error
	// sync artifacts
	MaxConnections() int
	MaxRetries() int
	StateThreshold() int
	Flatten() bool
	// specific to discover
	GetStreamNames(ctx context.Context) ([]string, error)
	ProduceSchema(ctx context.Context, stream string) (*types.Stream, error)
	// specific to sync; since is the stored bookmark value or nil
	StreamRecords(ctx context.Context, stream types.StreamInterface, since any, fn RecordFn) error
	StreamDeleted(ctx context.Context, stream types.StreamInterface, since any, fn RecordFn) error
}
