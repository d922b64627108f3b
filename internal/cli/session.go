package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/metrics"
	"github.com/roach88/tokenx/internal/notify"
	"github.com/roach88/tokenx/internal/registry"
	"github.com/roach88/tokenx/internal/store"
)

// session bundles the resources one command invocation works with: the
// store, the registry restored from it, metrics and notification sinks.
type session struct {
	store    *store.Store
	registry *registry.Registry
	metrics  *metrics.Metrics
	gatherer *prometheus.Registry
	sinks    *notify.Fanout
	logger   *slog.Logger

	closers []func()
}

// sessionOptions selects optional session parts.
type sessionOptions struct {
	// sinks installs the configured notification sinks on the registry.
	sinks bool

	// extra sinks appended after the configured ones.
	extra []notify.Named
}

// openSession opens the configured database and restores the registry.
func (o *RootOptions) openSession(ctx context.Context, so sessionOptions) (*session, error) {
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", withCode(ErrCodeStorage, err))
	}

	s := &session{
		store:    st,
		gatherer: prometheus.NewRegistry(),
		logger:   o.Logger,
	}
	s.metrics = metrics.New(s.gatherer)
	s.sinks = notify.NewFanout(s.metrics)

	if so.sinks {
		if err := s.installSinks(o); err != nil {
			s.Close()
			return nil, err
		}
	}
	for _, n := range so.extra {
		s.sinks.Add(n.Name, n.Sink)
	}

	snap, err := st.Load(ctx)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load registry", withCode(ErrCodeStorage, err))
	}

	reg, err := registry.Restore(snap,
		registry.WithJournal(st),
		registry.WithNotifier(s.sinks),
		registry.WithObserver(s.metrics),
		registry.WithLogger(o.Logger),
	)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore registry", err)
	}
	s.registry = reg

	o.Logger.Debug("registry restored",
		"db", o.Config.Database,
		"total_supply", reg.TotalSupply(),
		"last_seq", reg.LastSeq(),
	)
	return s, nil
}

// installSinks adds the log sink and, when configured, the Kafka sink.
func (s *session) installSinks(o *RootOptions) error {
	s.sinks.Add("log", notify.NewLogSink(o.Logger, slog.LevelDebug))

	kc := o.Config.Kafka
	if !kc.Enabled() {
		return nil
	}
	k, err := notify.NewKafkaSink(kc.Brokers, kc.Topic)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create kafka sink", err)
	}
	s.sinks.Add("kafka", k)
	s.closers = append(s.closers, k.Close)
	o.Logger.Debug("kafka sink enabled", "brokers", kc.Brokers, "topic", kc.Topic)
	return nil
}

// writeMetrics writes the Prometheus textfile when path is set.
func (s *session) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := metrics.WriteTextfile(path, s.gatherer); err != nil {
		return WrapExitError(ExitCommandError, "failed to write metrics", withCode(ErrCodeWriteFailed, err))
	}
	s.logger.Debug("metrics written", "path", path)
	return nil
}

// Close releases sinks and the store.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// parseAddressArg parses a command-line address.
func parseAddressArg(name, s string) (ir.Address, error) {
	a, err := ir.ParseAddress(s)
	if err != nil {
		return "", WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", name), withCode(ErrCodeBadArgument, err))
	}
	return a, nil
}

// parseTokenArg parses a command-line token ID.
func parseTokenArg(s string) (ir.TokenID, error) {
	id, err := ir.ParseTokenID(s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid token id", withCode(ErrCodeBadArgument, err))
	}
	return id, nil
}

// operationError maps a registry failure to an exit error.
func operationError(op string, err error) error {
	return WrapExitError(ExitFailure, op+" failed", err)
}
