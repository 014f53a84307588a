package calllog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalhub/internal/app/db"
	"signalhub/internal/pkg/randx"
)

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(Event{Kind: KindStarted})
	assert.NoError(t, r.Close(context.Background()))
}

func TestPostgres_RecordAfterCloseIsDropped(t *testing.T) {
	// pgxpool dials lazily, so no server is needed while nothing is written.
	pool, err := pgxpool.New(context.Background(), "postgres://signalhub@127.0.0.1:1/signalhub")
	require.NoError(t, err)

	rec := NewPostgres(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rec.Close(ctx))

	assert.NotPanics(t, func() {
		rec.Record(Event{Kind: KindEnded, RoomID: "call-1-abcdef", At: time.Now()})
	})
	assert.ErrorIs(t, rec.Close(ctx), ErrClosed)
}

func TestPostgres_FlushesOnClose(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)

	// Separate pool for assertions, since Close shuts the recorder's pool.
	check, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer check.Close()

	roomID := "call-test-" + randx.UUID()
	rec := NewPostgres(pool)

	at := time.Now().UTC().Truncate(time.Microsecond)
	rec.Record(Event{Kind: KindStarted, RoomID: roomID, Actor: "alice", Target: "bob", CallType: "video", At: at})
	rec.Record(Event{Kind: KindAccepted, RoomID: roomID, Actor: "bob", Target: "alice", At: at})
	rec.Record(Event{Kind: KindEnded, RoomID: roomID, Actor: "alice", At: at})

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, rec.Close(closeCtx))
	assert.ErrorIs(t, rec.Close(closeCtx), ErrClosed)

	var count int
	err = check.QueryRow(ctx, `SELECT count(*) FROM call_events WHERE room_id = $1`, roomID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var callType string
	err = check.QueryRow(ctx, `SELECT call_type FROM call_events WHERE room_id = $1 AND kind = $2`, roomID, string(KindStarted)).Scan(&callType)
	require.NoError(t, err)
	assert.Equal(t, "video", callType)

	_, err = check.Exec(ctx, `DELETE FROM call_events WHERE room_id = $1`, roomID)
	require.NoError(t, err)
}
