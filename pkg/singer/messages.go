// Package singer defines the messages the tap emits and the sinks that
// receive them.
//
// The output of a sync is an ordered log: a SCHEMA message per stream,
// followed by that stream's RECORD messages, followed by a STATE message
// carrying the advanced bookmark. Writer renders the log as
// newline-delimited JSON; Recorder keeps it in memory.
package singer

import (
	"time"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/bookmark"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/normalize"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/schema"
)

// MessageType is the "type" field of a message.
type MessageType string

const (
	TypeSchema MessageType = "SCHEMA"
	TypeRecord MessageType = "RECORD"
	TypeState  MessageType = "STATE"
)

const timeExtractedLayout = "2006-01-02T15:04:05.000000Z"

// Message is implemented by SchemaMessage, RecordMessage and StateMessage.
type Message interface {
	MessageType() MessageType
}

// SchemaMessage announces the record schema of a stream.
type SchemaMessage struct {
	Type          MessageType    `json:"type"`
	Stream        string         `json:"stream"`
	Schema        *schema.Schema `json:"schema"`
	KeyProperties []string       `json:"key_properties"`
	// BookmarkProperties lists the replication key, when there is one
	BookmarkProperties []string `json:"bookmark_properties,omitempty"`
}

func (m *SchemaMessage) MessageType() MessageType { return TypeSchema }

// RecordMessage carries one normalized row.
type RecordMessage struct {
	Type          MessageType      `json:"type"`
	Stream        string           `json:"stream"`
	Record        normalize.Record `json:"record"`
	TimeExtracted string           `json:"time_extracted,omitempty"`
}

func (m *RecordMessage) MessageType() MessageType { return TypeRecord }

// StateMessage carries the full state document after a stream completes.
type StateMessage struct {
	Type  MessageType    `json:"type"`
	Value bookmark.State `json:"value"`
}

func (m *StateMessage) MessageType() MessageType { return TypeState }

// NewSchema builds a SCHEMA message. A nil keyProperties encodes as [].
func NewSchema(stream string, s *schema.Schema, keyProperties []string, replicationKey string) *SchemaMessage {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	m := &SchemaMessage{Type: TypeSchema, Stream: stream, Schema: s, KeyProperties: keyProperties}
	if replicationKey != "" {
		m.BookmarkProperties = []string{replicationKey}
	}
	return m
}

// NewRecord builds a RECORD message. A zero extractedAt omits
// time_extracted.
func NewRecord(stream string, rec normalize.Record, extractedAt time.Time) *RecordMessage {
	m := &RecordMessage{Type: TypeRecord, Stream: stream, Record: rec}
	if !extractedAt.IsZero() {
		m.TimeExtracted = extractedAt.UTC().Format(timeExtractedLayout)
	}
	return m
}

// NewState builds a STATE message holding a private copy of state.
func NewState(state bookmark.State) *StateMessage {
	return &StateMessage{Type: TypeState, Value: bookmark.Clone(state)}
}
