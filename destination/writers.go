package destination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

const DestError = "destination error"

type NewFunc func() Writer

var RegisteredWriters = map[types.DestinationType]NewFunc{}

// NewWriter builds the registered writer for config and checks it; an empty
// type selects stdout
func NewWriter(ctx context.Context, config *types.WriterConfig) (Writer, error) {
	if config == nil {
		config = &types.WriterConfig{Type: types.Stdout}
	}
	kind := config.Type
	if kind == "" {
		kind = types.Stdout
	}

	newfunc, found := RegisteredWriters[kind]
	if !found {
		return nil, fmt.Errorf("invalid destination type has been passed [%s]", kind)
	}

	writer := newfunc()
	if config.WriterConfig != nil {
		if err := utils.Unmarshal(config.WriterConfig, writer.GetConfigRef()); err != nil {
			return nil, err
		}
	}
	if err := writer.GetConfigRef().Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %s", DestError, err)
	}
	if err := writer.Check(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to check %s writer: %s", DestError, kind, err)
	}

	return writer, nil
}

// Emitter serializes every write so records and checkpoints leave the
// process in one order. Each flushed checkpoint is also persisted to the
// state file.
type Emitter struct {
	mu        sync.Mutex
	writer    Writer
	records   atomic.Int64
	perStream map[string]int64
}

func NewEmitter(writer Writer) *Emitter {
	return &Emitter{
		writer:    writer,
		perStream: make(map[string]int64),
	}
}

func (e *Emitter) WriteRecord(ctx context.Context, stream string, record types.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writer.WriteRecord(ctx, stream, record); err != nil {
		return err
	}
	e.records.Add(1)
	e.perStream[stream]++

	return nil
}

func (e *Emitter) WriteState(ctx context.Context, state *types.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writer.WriteState(ctx, state); err != nil {
		return err
	}
	state.LogState()

	return nil
}

// SyncedRecords counts records accepted by the writer
func (e *Emitter) SyncedRecords() int64 {
	return e.records.Load()
}

func (e *Emitter) StreamRecords(stream string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.perStream[stream]
}

func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger.Infof("closing %s writer after %d records", e.writer.Type(), e.records.Load())
	return e.writer.Close(ctx)
}
