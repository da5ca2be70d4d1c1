package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EventID identifies one logical on-chain action across its provisional and
// confirmed observations: the transaction id plus the event's position within
// the transaction's inner-call group.
type EventID struct {
	TxID  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

// Key returns the canonical "<tx_id>:<index>" form used as the in-flight
// table key.
func (e EventID) Key() string {
	return e.TxID + ":" + strconv.FormatUint(uint64(e.Index), 10)
}

// ParseEventKey parses a canonical event key back into an EventID.
func ParseEventKey(key string) (EventID, error) {
	var out EventID

	i := strings.LastIndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return out, fmt.Errorf("invalid event key format: %s", key)
	}

	idx, err := strconv.ParseUint(key[i+1:], 10, 32)
	if err != nil {
		return out, fmt.Errorf("invalid event index: %w", err)
	}

	out.TxID = key[:i]
	out.Index = uint32(idx)

	return out, nil
}
