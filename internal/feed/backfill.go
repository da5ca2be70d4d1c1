package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"avm-dex-stream/internal/classify"
	"avm-dex-stream/internal/domain"
)

// backfillFrame is a gateway frame that is either an event or the terminal
// "end" control marker.
type backfillFrame struct {
	Op string `json:"op"`
	classify.RawEvent
}

// Backfill replays confirmed events in [fromRound, toRound] from the gateway,
// invoking fn for each in round order. It returns after the gateway signals
// the end of the range. A fn error aborts the replay.
func Backfill(ctx context.Context, cfg Config, log zerolog.Logger, fromRound, toRound uint64, fn func(classify.RawEvent) error) error {
	cfg.applyDefaults()
	logger := log.With().Str("component", "backfill").Logger()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock reads when the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	req := subscribeRequest{
		Op:        "backfill",
		Protocols: cfg.Protocols,
		States:    []domain.TxState{domain.TxStateConfirmed},
		FromRound: fromRound,
		ToRound:   toRound,
	}
	conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write backfill request: %w", err)
	}

	var replayed int
	for {
		conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read backfill frame: %w", err)
		}

		var frame backfillFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Warn().Err(err).Msg("drop undecodable frame")
			continue
		}
		if frame.Op == "end" {
			logger.Info().
				Uint64("from_round", fromRound).
				Uint64("to_round", toRound).
				Int("events", replayed).
				Msg("backfill complete")
			return nil
		}
		if frame.ID.TxID == "" {
			continue
		}

		if err := fn(frame.RawEvent); err != nil {
			return fmt.Errorf("replay event %s: %w", frame.ID.Key(), err)
		}
		replayed++
	}
}
