package types

import (
	"fmt"
)

// Input/Processed object for Stream
type ConfiguredStream struct {
	Stream *Stream `json:"stream,omitempty"`

	// ExtractionMode overrides the discovered mode for this stream only
	ExtractionMode ExtractionMode `json:"extraction_mode,omitempty"`
	// Column that's being used as replication key; MUST NOT BE mutated
	ReplicationKey string   `json:"replication_key,omitempty"`
	ExcludeColumns []string `json:"exclude_columns,omitempty"`
}

func (s *ConfiguredStream) ID() string {
	return s.Stream.ID()
}

func (s *ConfiguredStream) Self() *ConfiguredStream {
	return s
}

func (s *ConfiguredStream) Name() string {
	return s.Stream.Name
}

func (s *ConfiguredStream) GetStream() *Stream {
	return s.Stream
}

func (s *ConfiguredStream) Mode() ExtractionMode {
	if s.ExtractionMode != "" {
		return s.ExtractionMode
	}

	return s.Stream.ExtractionMode
}

func (s *ConfiguredStream) Cursor() string {
	if s.ReplicationKey != "" {
		return s.ReplicationKey
	}

	return s.Stream.ReplicationKey
}

func (s *ConfiguredStream) SupportsDeleted() bool {
	return s.Stream.SupportsDeleted
}

func (s *ConfiguredStream) Fields() []*Field {
	return s.Stream.Fields
}

// SelectedFields returns selected fields in discovery order minus excluded columns
func (s *ConfiguredStream) SelectedFields() []*Field {
	excluded := NewSet(s.ExcludeColumns...)
	selected := make([]*Field, 0, len(s.Stream.Fields))
	for _, field := range s.Stream.Fields {
		if field.Selected && !excluded.Exists(field.Name) {
			selected = append(selected, field)
		}
	}

	return selected
}

func (s *ConfiguredStream) FieldType(name string) (FieldType, bool) {
	field, found := s.Stream.Field(name)
	if !found {
		return Unknown, false
	}

	return field.Type, true
}

// Validate Configured Stream with Source Stream
func (s *ConfiguredStream) Validate(source *Stream) error {
	if mode := s.Mode(); mode != BulkMode && mode != RestMode {
		return fmt.Errorf("invalid extraction mode[%s]; valid are %v", mode, []ExtractionMode{BulkMode, RestMode})
	}

	if cursor := s.Cursor(); cursor != "" {
		if _, found := source.Field(cursor); !found {
			return fmt.Errorf("invalid replication key [%s]; not present in stream %s", cursor, source.Name)
		}
	}

	for _, column := range s.ExcludeColumns {
		if column == s.Cursor() {
			return fmt.Errorf("replication key [%s] cannot be excluded", column)
		}
	}

	return nil
}
