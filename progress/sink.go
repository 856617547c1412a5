// Package progress carries pipeline progress events to observers. Delivery
// is strictly best-effort: a sink must never block or fail the pipeline.
package progress

import "go.uber.org/zap"

// Event names consumed by the presentation layer.
const (
	EventProgress = "pipeline-progress"
	EventStats    = "pipeline-stats"
	EventImages   = "pipeline-images"
)

// Event is one progress notification: either a free-text update or a
// structured partial result (stats, image paths).
type Event struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Text builds a free-text progress event.
func Text(text string) Event {
	return Event{Name: EventProgress, Text: text}
}

// Sink receives progress events. Implementations swallow their own
// publication failures.
type Sink interface {
	Publish(ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// LogSink writes events to the process log; used by the one-shot CLI path
// where no UI is attached.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Publish(ev Event) {
	if ev.Text != "" {
		s.Logger.Info(ev.Text, zap.String("event", ev.Name))
		return
	}
	s.Logger.Info("pipeline event", zap.String("event", ev.Name), zap.Any("data", ev.Data))
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}
