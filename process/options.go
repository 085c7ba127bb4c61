package process

import (
	"time"

	"github.com/kdwarn/plumgo/emit"
	"github.com/kdwarn/plumgo/persistence"
)

// Options is the legacy struct form of process configuration, usable on
// its own or layered with functional Options. Mirrors the teacher's dual
// legacy-struct/functional-option pattern: a struct for bulk
// configuration plus composable Option setters that can override
// individual fields afterward.
type Options struct {
	Emitter           emit.Emitter
	Metrics           *Metrics
	Communicator      Communicator
	Persister         persistence.Persister
	DefaultStepTimeout time.Duration
	AutoPersist        bool
}

// Option is a functional option for configuring a Process at
// construction time, composable with an Options struct the same way the
// teacher's engine configuration composes graph.Option with
// graph.Options.
type Option func(*processConfig) error

// processConfig collects options before they are applied to a Process.
type processConfig struct {
	opts Options
}

func newProcessConfig(rest []any) (*processConfig, error) {
	cfg := &processConfig{}
	for _, item := range rest {
		switch v := item.(type) {
		case Options:
			cfg.opts = v
		case Option:
			if err := v(cfg); err != nil {
				return nil, err
			}
		case nil:
			// ignore
		default:
			return nil, NewProcessError(CodeInvalidState, "process: unrecognized option argument", nil)
		}
	}
	return cfg, nil
}

// WithEmitter registers an observability emitter events are fanned out
// to in addition to the listener table.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *processConfig) error {
		cfg.opts.Emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection for this process.
func WithMetrics(m *Metrics) Option {
	return func(cfg *processConfig) error {
		cfg.opts.Metrics = m
		return nil
	}
}

// WithCommunicator wires the RPC/broadcast transport a process uses for
// remote control and state-change broadcasts.
func WithCommunicator(c Communicator) Option {
	return func(cfg *processConfig) error {
		cfg.opts.Communicator = c
		return nil
	}
}

// WithPersister attaches a persister used for AutoPersist and by a
// launcher handling continue/create tasks for this process.
func WithPersister(p persistence.Persister) Option {
	return func(cfg *processConfig) error {
		cfg.opts.Persister = p
		return nil
	}
}

// WithDefaultStepTimeout bounds how long a single step may run before
// the executor treats it as stalled. Zero (the default) disables the
// bound.
func WithDefaultStepTimeout(d time.Duration) Option {
	return func(cfg *processConfig) error {
		cfg.opts.DefaultStepTimeout = d
		return nil
	}
}

// WithAutoPersist saves a checkpoint via the configured persister after
// every successful state transition.
func WithAutoPersist(enabled bool) Option {
	return func(cfg *processConfig) error {
		cfg.opts.AutoPersist = enabled
		return nil
	}
}
