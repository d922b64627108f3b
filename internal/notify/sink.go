package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
)

// LogSink writes each notification to a structured logger.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink logging at level.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

// Notify implements registry.Notifier.
func (s *LogSink) Notify(ctx context.Context, n ir.Notification) error {
	msg := "token transferred"
	if n.IsMint() {
		msg = "token created"
	}
	s.logger.Log(ctx, s.level, msg,
		"seq", n.Seq,
		"token_id", n.TokenID,
		"from", n.From,
		"to", n.To,
		"request_id", n.RequestID,
	)
	return nil
}

// ChanSink forwards notifications to a channel. Notify blocks until the
// receiver takes the notification or ctx is done.
type ChanSink struct {
	ch chan<- ir.Notification
}

// NewChanSink creates a sink writing to ch.
func NewChanSink(ch chan<- ir.Notification) *ChanSink {
	return &ChanSink{ch: ch}
}

// Notify implements registry.Notifier.
func (s *ChanSink) Notify(ctx context.Context, n ir.Notification) error {
	select {
	case s.ch <- n:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify seq %d: %w", n.Seq, ctx.Err())
	}
}

// DeliveryObserver records per-sink delivery outcomes.
// Implemented by *metrics.Metrics.
type DeliveryObserver interface {
	ObserveDelivery(sink string, err error)
}

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink registry.Notifier
}

// Fanout delivers every notification to each sink in order. One sink
// failing does not stop delivery to the rest; all failures are joined.
type Fanout struct {
	sinks    []Named
	observer DeliveryObserver
}

// NewFanout creates a fan-out over sinks. observer may be nil.
func NewFanout(observer DeliveryObserver, sinks ...Named) *Fanout {
	return &Fanout{sinks: sinks, observer: observer}
}

// Add appends a sink.
func (f *Fanout) Add(name string, sink registry.Notifier) {
	f.sinks = append(f.sinks, Named{Name: name, Sink: sink})
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Notify implements registry.Notifier.
func (f *Fanout) Notify(ctx context.Context, n ir.Notification) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Sink.Notify(ctx, n)
		if f.observer != nil {
			f.observer.ObserveDelivery(s.Name, err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
