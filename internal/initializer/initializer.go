// Package initializer makes the store ready for the service: it waits for a
// connection with a bounded number of attempts, then creates the students
// table if it does not exist.
//
// It runs once. When every attempt fails the service keeps running and data
// requests fail until the process is restarted; nothing retries in the
// background.
package initializer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studentapi/internal/config"
)

var (
	// ErrStoreUnreachable is returned by Run when every attempt failed.
	ErrStoreUnreachable = errors.New("database unreachable")
	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("initializer already run")
)

// Store is what the initializer needs from the database gateway.
type Store interface {
	Acquire(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
}

// Clock abstracts the retry delay so tests do not sleep.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type Option func(*Initializer)

func WithClock(c Clock) Option {
	return func(i *Initializer) {
		i.clock = c
	}
}

type Initializer struct {
	store Store
	clock Clock
	delay time.Duration
	log   zerolog.Logger

	mu      sync.RWMutex
	state   State
	lastErr error

	started bool
	done    chan struct{}
}

func New(store Store, cfg config.InitConfig, log zerolog.Logger, opts ...Option) *Initializer {
	i := &Initializer{
		store: store,
		clock: realClock{},
		delay: cfg.RetryDelay,
		log:   log.With().Str("component", "initializer").Logger(),
		state: Initial(cfg.Retries),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State returns the current protocol state.
func (i *Initializer) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Err returns the error that moved the initializer to Failed, if any.
func (i *Initializer) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

// Done is closed when Run returns.
func (i *Initializer) Done() <-chan struct{} {
	return i.done
}

func (i *Initializer) apply(ev Event, err error) State {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = Next(i.state, ev)
	if i.state.Phase == PhaseFailed && err != nil {
		i.lastErr = err
	}
	return i.state
}

// Run executes the protocol. It returns nil once the schema exists.
func (i *Initializer) Run(ctx context.Context) error {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return ErrAlreadyRun
	}
	i.started = true
	i.mu.Unlock()
	defer close(i.done)

	for {
		err := i.store.Acquire(ctx)
		if err == nil {
			break
		}

		st := i.apply(EventConnectFailed, err)
		if st.Phase == PhaseFailed {
			i.log.Error().
				Err(err).
				Int("attempts", st.Attempts).
				Msg("failed to initialize database after multiple attempts, some features may not work")
			return fmt.Errorf("%w after %d attempts: %v", ErrStoreUnreachable, st.Attempts, err)
		}

		i.log.Warn().
			Err(err).
			Int("attempts_left", st.RetriesLeft).
			Dur("retry_in", i.delay).
			Msg("database connection failed, retrying")

		select {
		case <-ctx.Done():
			i.apply(EventAborted, ctx.Err())
			return ctx.Err()
		case <-i.clock.After(i.delay):
		}
	}

	i.apply(EventConnectSucceeded, nil)
	i.log.Info().Msg("successfully connected to the database")

	if err := i.store.EnsureSchema(ctx); err != nil {
		i.apply(EventSchemaFailed, err)
		i.log.Error().Err(err).Msg("error creating students table")
		return err
	}

	i.apply(EventSchemaCreated, nil)
	i.log.Info().Msg("database initialization completed successfully")
	return nil
}
