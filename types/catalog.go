package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

type MessageType string

const (
	LogMessage              MessageType = "LOG"
	ConnectionStatusMessage MessageType = "CONNECTION_STATUS"
	StateMessage            MessageType = "STATE"
	RecordMessage           MessageType = "RECORD"
	CatalogMessage          MessageType = "CATALOG"
	SpecMessage             MessageType = "SPEC"
)

type ConnectionStatus string

const (
	ConnectionSucceed ConnectionStatus = "SUCCEEDED"
	ConnectionFailed  ConnectionStatus = "FAILED"
)

// Message is a dto for olake output row representation
type Message struct {
	Type             MessageType    `json:"type"`
	Log              *Log           `json:"log,omitempty"`
	ConnectionStatus *StatusRow     `json:"connectionStatus,omitempty"`
	State            *State         `json:"state,omitempty"`
	Catalog          *Catalog       `json:"catalog,omitempty"`
	Record           *RecordRow     `json:"record,omitempty"`
	Spec             map[string]any `json:"spec,omitempty"`
}

// Log is a dto for log serialization
type Log struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusRow is a dto for connection status serialization
type StatusRow struct {
	Status  ConnectionStatus `json:"status,omitempty"`
	Message string           `json:"message,omitempty"`
}

// RecordRow carries one record tagged with its stream
type RecordRow struct {
	Stream    string `json:"stream"`
	Data      Record `json:"data"`
	EmittedAt int64  `json:"emitted_at"`
}

func NewRecordMessage(stream string, record Record, at time.Time) *Message {
	return &Message{
		Type: RecordMessage,
		Record: &RecordRow{
			Stream:    stream,
			Data:      record,
			EmittedAt: at.UnixMilli(),
		},
	}
}

// Catalog is the set of discovered streams plus the user's selection
type Catalog struct {
	// SelectedStreams restricts the sync to the named streams; empty selects all
	SelectedStreams []string            `json:"selected_streams,omitempty"`
	Streams         []*ConfiguredStream `json:"streams,omitempty"`
}

func GetWrappedCatalog(streams []*Stream) *Catalog {
	catalog := &Catalog{
		Streams: []*ConfiguredStream{},
	}

	sort.Slice(streams, func(i, j int) bool { return streams[i].Name < streams[j].Name })
	for _, stream := range streams {
		catalog.Streams = append(catalog.Streams, stream.Wrap())
		catalog.SelectedStreams = append(catalog.SelectedStreams, stream.Name)
	}

	return catalog
}

// Selected returns the configured streams chosen for sync, validated against
// the source streams when those are known
func (c *Catalog) Selected(source []*Stream) ([]StreamInterface, error) {
	selection := NewSet(c.SelectedStreams...)
	sourceMap := StreamsToMap(source...)

	var selected []StreamInterface
	for _, elem := range c.Streams {
		if elem.Stream == nil {
			continue
		}
		if selection.Len() > 0 && !selection.Exists(elem.ID()) {
			logger.Debugf("Skipping stream %s; not in selected streams.", elem.ID())
			continue
		}

		if source != nil {
			src, found := sourceMap[elem.ID()]
			if !found {
				logger.Warnf("Skipping; Configured Stream %s not found in source", elem.ID())
				continue
			}
			if err := elem.Validate(src); err != nil {
				logger.Warnf("Skipping; Configured Stream %s found invalid due to reason: %s", elem.ID(), err)
				continue
			}
		}

		selected = append(selected, elem)
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no valid streams found in catalog")
	}

	return selected, nil
}

// LogCatalog prints the discovered catalog and saves it as streams.json
func LogCatalog(streams []*Stream) {
	message := Message{
		Type:    CatalogMessage,
		Catalog: GetWrappedCatalog(streams),
	}
	logger.FileLogger(message, "streams", ".json")
}
