package calllog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"signalhub/internal/app/db"
	"signalhub/internal/pkg/logx"
)

const (
	// queueSize bounds events waiting to be written.
	queueSize = 1024

	// batchSize is the largest number of rows written in one COPY.
	batchSize = 128

	// flushInterval is how long a partial batch may wait.
	flushInterval = 2 * time.Second

	// writeTimeout bounds a single batch write.
	writeTimeout = 5 * time.Second
)

var columns = []string{"kind", "room_id", "actor", "target", "call_type", "occurred_at"}

// ErrClosed is returned when Close is called twice.
var ErrClosed = errors.New("recorder already closed")

// Postgres writes call events to the call_events table in batches from a background goroutine.
type Postgres struct {
	pool   *pgxpool.Pool
	events chan Event

	// mu guards closed so Record never sends on the closed events channel.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	logger zerolog.Logger
}

// NewPostgres starts a recorder writing through pool. Close stops it and closes the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	p := &Postgres{
		pool:   pool,
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
		logger: logx.Component("calllog"),
	}

	go p.run()

	return p
}

// Record queues e, dropping it when the queue is full or the recorder is closed.
func (p *Postgres) Record(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn().
			Str("kind", string(e.Kind)).
			Str("room_id", e.RoomID).
			Msg("Call log recorder closed, dropping event.")
		return
	}

	select {
	case p.events <- e:
	default:
		p.logger.Warn().
			Str("kind", string(e.Kind)).
			Str("room_id", e.RoomID).
			Msg("Call log queue full, dropping event.")
	}
}

// Close stops accepting events, writes what is queued, and closes the pool.
// Queued events still unwritten when ctx ends are lost.
func (p *Postgres) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	var err error
	select {
	case <-p.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	p.pool.Close()
	return err
}

func (p *Postgres) run() {
	defer close(p.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchSize)

	for {
		select {
		case e, ok := <-p.events:
			if !ok {
				p.flush(batch)
				p.logger.Info().Msg("Call log recorder stopped.")
				return
			}

			batch = append(batch, e)
			if len(batch) >= batchSize {
				batch = p.flush(batch)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				batch = p.flush(batch)
			}
		}
	}
}

// flush writes batch, retrying once on transient failures, and returns the emptied slice.
func (p *Postgres) flush(batch []Event) []Event {
	if len(batch) == 0 {
		return batch
	}

	err := p.write(batch)
	if err != nil && db.IsRetryable(err) {
		p.logger.Warn().Err(err).Int("rows", len(batch)).Msg("Call log write failed, retrying once.")
		err = p.write(batch)
	}

	if err != nil {
		p.logger.Error().Err(err).Int("rows", len(batch)).Msg("Dropping call log batch.")
	}

	return batch[:0]
}

func (p *Postgres) write(batch []Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := p.pool.CopyFrom(ctx, pgx.Identifier{"call_events"}, columns, pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
		e := batch[i]
		return []any{string(e.Kind), e.RoomID, e.Actor, e.Target, e.CallType, e.At}, nil
	}))

	return err
}
