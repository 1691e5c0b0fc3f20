package types

import (
	"fmt"

	"github.com/datazip-inc/olake-salesforce/utils"
)

// ExtractionMode selects the remote API used to read a stream
type ExtractionMode string

const (
	BulkMode ExtractionMode = "bulk"
	RestMode ExtractionMode = "rest"
)

// Field is one discovered column of a stream
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Selected bool      `json:"selected"`
	// SourceType keeps the remote type tag for diagnostics
	SourceType string `json:"source_type,omitempty"`
}

// Stream is a discovered data object; it is not mutated once a sync starts
type Stream struct {
	Name            string         `json:"name"`
	Fields          []*Field       `json:"fields"`
	ExtractionMode  ExtractionMode `json:"extraction_mode"`
	ReplicationKey  string         `json:"replication_key,omitempty"`
	SupportsDeleted bool           `json:"supports_deleted"`
}

func NewStream(name string, mode ExtractionMode) *Stream {
	return &Stream{
		Name:           name,
		ExtractionMode: mode,
	}
}

func (s *Stream) ID() string {
	return s.Name
}

// UpsertField adds a field or updates the type of an existing one
func (s *Stream) UpsertField(name string, typ FieldType, selected bool) {
	if idx, found := utils.ArrayContains(s.Fields, func(f *Field) bool { return f.Name == name }); found {
		s.Fields[idx].Type = typ
		return
	}

	s.Fields = append(s.Fields, &Field{Name: name, Type: typ, Selected: selected})
}

func (s *Stream) Field(name string) (*Field, bool) {
	idx, found := utils.ArrayContains(s.Fields, func(f *Field) bool { return f.Name == name })
	if !found {
		return nil, false
	}

	return s.Fields[idx], true
}

func (s *Stream) WithReplicationKey(key string) *Stream {
	s.ReplicationKey = key
	return s
}

func (s *Stream) Wrap() *ConfiguredStream {
	return &ConfiguredStream{
		Stream: s,
	}
}

func (s *Stream) String() string {
	return fmt.Sprintf("%s[%s]", s.Name, s.ExtractionMode)
}

func StreamsToMap(streams ...*Stream) map[string]*Stream {
	output := make(map[string]*Stream, len(streams))
	for _, stream := range streams {
		output[stream.ID()] = stream
	}

	return output
}
