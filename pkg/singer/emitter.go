package singer

import (
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tap-bigquery/pkg/json"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/normalize"
)

// Emitter appends messages to the output log. Emit must preserve order.
type Emitter interface {
	Emit(msg Message) error
}

// Writer emits each message as one line of JSON.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a writer on w, typically os.Stdout.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Emit encodes msg. Decimal values are written as bare JSON numbers.
func (w *Writer) Emit(msg Message) error {
	if rm, ok := msg.(*RecordMessage); ok {
		cp := *rm
		cp.Record = encodable(rm.Record)
		msg = &cp
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := jsonpool.WriteLine(w.w, msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to write message").
			WithDetail("type", string(msg.MessageType()))
	}
	return nil
}

func encodable(rec normalize.Record) normalize.Record {
	out := make(normalize.Record, len(rec))
	for k, v := range rec {
		if d, ok := v.(decimal.Decimal); ok {
			out[k] = jsonpool.Number(d.String())
			continue
		}
		out[k] = v
	}
	return out
}

// Recorder is an in-memory Emitter. The recorded log can be inspected or
// replayed into another emitter.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the log.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Types returns the message types in log order.
func (r *Recorder) Types() []MessageType {
	msgs := r.Messages()
	out := make([]MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.MessageType()
	}
	return out
}

// Records returns the RECORD messages of stream.
func (r *Recorder) Records(stream string) []*RecordMessage {
	var out []*RecordMessage
	for _, m := range r.Messages() {
		if rm, ok := m.(*RecordMessage); ok && rm.Stream == stream {
			out = append(out, rm)
		}
	}
	return out
}

// States returns the STATE messages in order.
func (r *Recorder) States() []*StateMessage {
	var out []*StateMessage
	for _, m := range r.Messages() {
		if sm, ok := m.(*StateMessage); ok {
			out = append(out, sm)
		}
	}
	return out
}

// Replay emits the recorded log, in order, to e.
func (r *Recorder) Replay(e Emitter) error {
	for _, m := range r.Messages() {
		if err := e.Emit(m); err != nil {
			return err
		}
	}
	return nil
}
