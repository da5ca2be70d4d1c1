package classify

import (
	"encoding/json"

	"avm-dex-stream/internal/domain"
)

// RawEvent is the upstream feed tuple: protocol tags, confirmation state,
// event identity and the protocol-specific payload left undecoded until a
// policy claims it.
type RawEvent struct {
	Protocol  domain.DEXProtocol `json:"protocol"`
	AMM       domain.AMMType     `json:"amm"`
	State     domain.TxState     `json:"state"`
	ID        domain.EventID     `json:"id"`
	Round     uint64             `json:"round"`
	Timestamp int64              `json:"timestamp"` // unix milliseconds
	Payload   json.RawMessage    `json:"payload"`
}
