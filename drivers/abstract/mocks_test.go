package abstract

import (
	"context"
	"fmt"
	"sync"

	"github.com/datazip-inc/olake-salesforce/types"
)

// Mock implementations for testing

type MockDriver struct {
	getConfigRefFunc   func() Config
	specFunc           func() any
	typeFunc           func() string
	setupFunc          func(ctx context.Context) error
	maxConnectionsFunc func() int
	maxRetriesFunc     func() int
	stateThresholdFunc func() int
	flattenFunc        func() bool
	getStreamNamesFunc func(ctx context.Context) ([]string, error)
	produceSchemaFunc  func(ctx context.Context, stream string) (*types.Stream, error)
	streamRecordsFunc  func(ctx context.Context, stream types.StreamInterface, since any, fn RecordFn) error
	streamDeletedFunc  func(ctx context.Context, stream types.StreamInterface, since any, fn RecordFn) error
}

func (m *MockDriver) GetConfigRef() Config {
	if m.getConfigRefFunc != nil {
		return m.getConfigRefFunc()
	}
	return nil
}

func (m *MockDriver) Spec() any {
	if m.specFunc != nil {
		return m.specFunc()
	}
	return nil
}

func (m *MockDriver) Type() string {
	if m.typeFunc != nil {
		return m.typeFunc()
	}
	return "mock"
}

func (m *MockDriver) Setup(ctx context.Context) error {
	if m.setupFunc != nil {
		return m.setupFunc(ctx)
	}
	return nil
}

func (m *MockDriver) MaxConnections() int {
	if m.maxConnectionsFunc != nil {
		return m.maxConnectionsFunc()
	}
	return 1
}

func (m *MockDriver) MaxRetries() int {
	if m.maxRetriesFunc != nil {
		return m.maxRetriesFunc()
	}
	return 1
}

func (m *MockDriver) StateThreshold() int {
	if m.stateThresholdFunc != nil {
		return m.stateThresholdFunc()
	}
	return 1000
}

func (m *MockDriver) Flatten() bool {
	if m.flattenFunc != nil {
		return m.flattenFunc()
	}
	return true
}

func (m *MockDriver) GetStreamNames(ctx context.Context) ([]string, error) {
	if m.getStreamNamesFunc != nil {
		return m.getStreamNamesFunc(ctx)
	}
	return []string{}, nil
}

func (m *MockDriver) ProduceSchema(ctx context.Context, stream string) (*types.Stream, error) {
	if m.produceSchemaFunc != nil {
		return m.produceSchemaFunc(ctx, stream)
	}
	return types.NewStream(stream, types.RestMode), nil
}

func (m *MockDriver) StreamRecords(ctx context.Context, stream types.StreamInterface, since any, fn RecordFn) error {
	if m.streamRecordsFunc != nil {
		return m.streamRecordsFunc(ctx, stream, since, fn)
	}
	return nil
}

func (m *MockDriver) StreamDeleted(ctx context.Context, stream types.StreamInterface, since any, fn RecordFn) error {
	if m.streamDeletedFunc != nil {
		return m.streamDeletedFunc(ctx, stream, since, fn)
	}
	return nil
}

// MockConfig implements Config interface
type MockConfig struct {
	validateFunc func() error
}

func (m *MockConfig) Validate() error {
	if m.validateFunc != nil {
		return m.validateFunc()
	}
	return nil
}

// MockSink records what reaches the destination, in arrival order
type MockSink struct {
	mu           sync.Mutex
	records      map[string][]types.Record
	order        []string
	states       []*types.State
	writeErr     error
	writeStateFn func(state *types.State) error
}

func NewMockSink() *MockSink {
	return &MockSink{records: make(map[string][]types.Record)}
}

func (m *MockSink) WriteRecord(_ context.Context, stream string, record types.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	m.records[stream] = append(m.records[stream], record)
	m.order = append(m.order, stream)
	return nil
}

func (m *MockSink) WriteState(_ context.Context, state *types.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeStateFn != nil {
		if err := m.writeStateFn(state); err != nil {
			return err
		}
	}
	m.states = append(m.states, state)
	return nil
}

func (m *MockSink) Records(stream string) []types.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]types.Record(nil), m.records[stream]...)
}

func (m *MockSink) States() []*types.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*types.State(nil), m.states...)
}

// Helper functions

// createMockStream builds a configured stream with an Id and a
// SystemModstamp replication key
func createMockStream(name string, mode types.ExtractionMode) *types.ConfiguredStream {
	stream := types.NewStream(name, mode)
	stream.UpsertField("Id", types.Reference, true)
	stream.UpsertField("Amount", types.Number, true)
	stream.UpsertField("SystemModstamp", types.DateTime, true)
	stream.WithReplicationKey("SystemModstamp")
	return stream.Wrap()
}

func createKeylessStream(name string) *types.ConfiguredStream {
	stream := types.NewStream(name, types.RestMode)
	stream.UpsertField("Id", types.Reference, true)
	return stream.Wrap()
}

// mockRows returns n rows whose SystemModstamp increases by one day
func mockRows(n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, map[string]any{
			"Id":             mockID(i),
			"SystemModstamp": mockStamp(i),
		})
	}
	return rows
}

func mockID(i int) string {
	return fmt.Sprintf("001%03d", i)
}

func mockStamp(i int) string {
	return fmt.Sprintf("2024-02-%02dT00:00:00.000+0000", i)
}

// feed hands rows to fn, stopping at the first error
func feed(ctx context.Context, rows []map[string]any, fn RecordFn) error {
	for _, row := range rows {
		if err := fn(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
