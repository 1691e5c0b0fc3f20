package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
	goparquet "github.com/parquet-go/parquet-go"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// deleted-records feed rows carry this column beyond the catalog
const deletedDateColumn = "deletedDate"

type column struct {
	name string
	kind types.FieldType
}

// streamFile is the output of one stream. Rows go to the open part file;
// every checkpoint seals it so the rows it covers are readable on disk, and
// the next row opens a new part.
type streamFile struct {
	id      string
	dir     string
	schema  *goparquet.Schema
	columns []column
	rows    int64

	path   string
	file   *os.File
	writer *goparquet.Writer
	parts  int
}

// Parquet writes the rows of each stream as part files under a directory per
// stream. Columns follow the catalog: booleans as BOOLEAN, integers as INT64
// and everything else as UTF8 text so decimals keep their exact digits.
type Parquet struct {
	config  *Config
	streams map[string]*streamFile
}

func (p *Parquet) GetConfigRef() destination.Config {
	return p.config
}

func (p *Parquet) Spec() any {
	return Config{}
}

func (p *Parquet) Type() string {
	return string(types.Parquet)
}

func (p *Parquet) Check(_ context.Context) error {
	if err := os.MkdirAll(p.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory[%s]: %s", p.config.Path, err)
	}

	probe, err := os.CreateTemp(p.config.Path, ".olake-check-*")
	if err != nil {
		return fmt.Errorf("output directory[%s] is not writable: %s", p.config.Path, err)
	}
	probe.Close()

	return os.Remove(probe.Name())
}

func (p *Parquet) Setup(_ context.Context, streams []types.StreamInterface) error {
	for _, stream := range streams {
		if _, found := p.streams[stream.ID()]; found {
			continue
		}

		output, err := p.prepare(stream)
		if err != nil {
			return err
		}
		p.streams[stream.ID()] = output
	}

	return nil
}

func (p *Parquet) prepare(stream types.StreamInterface) (*streamFile, error) {
	kinds := make(map[string]types.FieldType)
	group := goparquet.Group{}
	for _, field := range stream.SelectedFields() {
		kinds[field.Name] = field.Type
		group[field.Name] = goparquet.Optional(node(field.Type))
	}
	if stream.SupportsDeleted() {
		if _, found := kinds[deletedDateColumn]; !found {
			kinds[deletedDateColumn] = types.DateTime
			group[deletedDateColumn] = goparquet.Optional(goparquet.String())
		}
	}
	schema := goparquet.NewSchema(stream.Name(), group)

	// group fields are ordered by name; rows must follow that order
	columns := make([]column, 0, len(schema.Fields()))
	for _, field := range schema.Fields() {
		columns = append(columns, column{name: field.Name(), kind: kinds[field.Name()]})
	}

	dir := filepath.Join(p.config.Path, stream.Name())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create stream directory[%s]: %s", dir, err)
	}

	return &streamFile{id: stream.ID(), dir: dir, schema: schema, columns: columns}, nil
}

// openPart starts a new part file for the stream
func (p *Parquet) openPart(output *streamFile) error {
	path := filepath.Join(output.dir, utils.TimestampedFileName(constants.ParquetFileExt))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file[%s]: %s", path, err)
	}

	logger.Infof("writing stream[%s] to %s", output.id, path)
	output.path = path
	output.file = file
	output.writer = goparquet.NewWriter(file, output.schema, goparquet.Compression(p.config.codec()))
	output.parts++

	return nil
}

// seal writes the footer of the open part and syncs it to disk
func (output *streamFile) seal() error {
	if output.writer == nil {
		return nil
	}
	writer, file := output.writer, output.file
	output.writer, output.file = nil, nil

	return utils.ErrExecSequential(
		utils.ErrExecFormat(fmt.Sprintf("failed to close parquet writer of %s: ", output.id)+"%s", writer.Close),
		utils.ErrExecFormat(fmt.Sprintf("failed to sync %s: ", output.path)+"%s", file.Sync),
		utils.ErrExecFormat(fmt.Sprintf("failed to close %s: ", output.path)+"%s", file.Close),
	)
}

func node(kind types.FieldType) goparquet.Node {
	switch kind {
	case types.Boolean:
		return goparquet.Leaf(goparquet.BooleanType)
	case types.Integer:
		return goparquet.Int(64)
	default:
		return goparquet.String()
	}
}

func (p *Parquet) WriteRecord(_ context.Context, stream string, record types.Record) error {
	output, found := p.streams[stream]
	if !found {
		return fmt.Errorf("stream[%s] was not set up for parquet output", stream)
	}
	if output.writer == nil {
		if err := p.openPart(output); err != nil {
			return err
		}
	}

	row := make(goparquet.Row, len(output.columns))
	for idx, col := range output.columns {
		value, err := toValue(col, record)
		if err != nil {
			logger.Warnf("writing null to %s.%s: %s", stream, col.name, err)
			value = goparquet.NullValue()
		}
		definition := utils.Ternary(value.IsNull(), 0, 1).(int)
		row[idx] = value.Level(0, definition, idx)
	}

	if _, err := output.writer.WriteRows([]goparquet.Row{row}); err != nil {
		return fmt.Errorf("failed to write row to %s: %s", output.path, err)
	}
	output.rows++

	return nil
}

// toValue converts a translated value to its column's physical type
func toValue(col column, record types.Record) (goparquet.Value, error) {
	raw := record[col.name]
	if raw == nil {
		return goparquet.NullValue(), nil
	}

	switch col.kind {
	case types.Boolean:
		v, ok := raw.(bool)
		if !ok {
			return goparquet.Value{}, fmt.Errorf("expected boolean, found %T", raw)
		}
		return goparquet.BooleanValue(v), nil
	case types.Integer:
		switch v := raw.(type) {
		case int64:
			return goparquet.Int64Value(v), nil
		case json.Number:
			n, err := strconv.ParseInt(v.String(), 10, 64)
			if err != nil {
				return goparquet.Value{}, fmt.Errorf("integer %s out of INT64 range", v)
			}
			return goparquet.Int64Value(n), nil
		default:
			return goparquet.Value{}, fmt.Errorf("expected integer, found %T", raw)
		}
	default:
		text, err := record.GetStringifiedValue(col.name)
		if err != nil {
			return goparquet.Value{}, err
		}
		return goparquet.ByteArrayValue([]byte(text)), nil
	}
}

// WriteState seals every open part file before the checkpoint covering its
// rows is written beside the data
func (p *Parquet) WriteState(_ context.Context, state *types.State) error {
	sealers := make([]func() error, 0, len(p.streams))
	for _, output := range p.streams {
		sealers = append(sealers, output.seal)
	}
	if err := utils.ErrExecSequential(sealers...); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %s", err)
	}

	path := filepath.Join(p.config.Path, constants.StateFileName)
	tmp := path + ".tmp"
	if err := writeSynced(tmp, data); err != nil {
		return fmt.Errorf("failed to write state file[%s]: %s", tmp, err)
	}

	return os.Rename(tmp, path)
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	return utils.ErrExecSequential(
		func() error {
			_, err := file.Write(data)
			return err
		},
		file.Sync,
		file.Close,
	)
}

func (p *Parquet) Close(_ context.Context) error {
	sealers := make([]func() error, 0, len(p.streams))
	for _, output := range p.streams {
		sealers = append(sealers, output.seal)
		logger.Infof("closing stream[%s] output with %d rows in %d part files", output.id, output.rows, output.parts)
	}
	p.streams = make(map[string]*streamFile)

	return utils.ErrExecSequential(sealers...)
}

func init() {
	destination.RegisteredWriters[types.Parquet] = func() destination.Writer {
		return &Parquet{
			config:  &Config{},
			streams: make(map[string]*streamFile),
		}
	}
}
