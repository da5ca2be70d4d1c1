package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avm-dex-stream/internal/classify"
	"avm-dex-stream/internal/domain"
)

func writeEndFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"end"}`)))
}

func TestBackfillReplaysRange(t *testing.T) {
	url := gatewayStub(t, func(conn *websocket.Conn) {
		req := readSubscribe(t, conn)
		assert.Equal(t, "backfill", req.Op)
		assert.Equal(t, uint64(41000000), req.FromRound)
		assert.Equal(t, uint64(41000100), req.ToRound)
		assert.Equal(t, []domain.TxState{domain.TxStateConfirmed}, req.States)

		require.NoError(t, conn.WriteJSON(testEvent("TX1")))
		require.NoError(t, conn.WriteJSON(testEvent("TX2")))
		writeEndFrame(t, conn)
	})

	var got []string
	err := Backfill(context.Background(), Config{URL: url}, zerolog.Nop(), 41000000, 41000100,
		func(ev classify.RawEvent) error {
			got = append(got, ev.ID.TxID)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"TX1", "TX2"}, got)
}

func TestBackfillSkipsControlFrames(t *testing.T) {
	url := gatewayStub(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"progress"}`)))
		require.NoError(t, conn.WriteJSON(testEvent("TX1")))
		writeEndFrame(t, conn)
	})

	var got int
	err := Backfill(context.Background(), Config{URL: url}, zerolog.Nop(), 1, 2,
		func(classify.RawEvent) error {
			got++
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestBackfillCallbackErrorAborts(t *testing.T) {
	url := gatewayStub(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		require.NoError(t, conn.WriteJSON(testEvent("TX1")))
		require.NoError(t, conn.WriteJSON(testEvent("TX2")))
		writeEndFrame(t, conn)
	})

	sinkErr := errors.New("sink unavailable")
	var calls int
	err := Backfill(context.Background(), Config{URL: url}, zerolog.Nop(), 1, 2,
		func(classify.RawEvent) error {
			calls++
			return sinkErr
		})
	require.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, calls, "replay stops at the first failure")
	assert.Contains(t, err.Error(), "TX1:0")
}

func TestBackfillHonoursContextCancel(t *testing.T) {
	url := gatewayStub(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		// Never send the end frame; the caller has to give up.
		conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := Backfill(ctx, Config{URL: url}, zerolog.Nop(), 1, 2,
		func(classify.RawEvent) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
