package domain

import (
	"encoding/json"
	"fmt"
)

// Enumerations are string-typed and serialized by name so that adding new
// members never shifts the meaning of previously written records.

// AssetType identifies the on-chain asset standard.
type AssetType string

const (
	// AssetTypeASA is a native protocol asset with ledger-level balances.
	AssetTypeASA AssetType = "ASA"
	// AssetTypeARC200 is a smart-contract token with contract-managed balances.
	AssetTypeARC200 AssetType = "ARC200"
)

// ParseAssetType validates an asset type name.
func ParseAssetType(s string) (AssetType, error) {
	switch AssetType(s) {
	case AssetTypeASA, AssetTypeARC200:
		return AssetType(s), nil
	}
	return "", fmt.Errorf("unknown asset type %q", s)
}

// UnmarshalJSON rejects unknown names instead of carrying them forward.
func (t *AssetType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseAssetType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TxState is the confirmation state of the transaction an event came from.
type TxState string

const (
	// TxStateTxPool marks a provisional observation from the pending pool.
	TxStateTxPool TxState = "TxPool"
	// TxStateConfirmed marks a finalized on-chain observation.
	TxStateConfirmed TxState = "Confirmed"
)

// ParseTxState validates a confirmation state name.
func ParseTxState(s string) (TxState, error) {
	switch TxState(s) {
	case TxStateTxPool, TxStateConfirmed:
		return TxState(s), nil
	}
	return "", fmt.Errorf("unknown tx state %q", s)
}

func (t *TxState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseTxState(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DEXProtocol identifies the exchange protocol an event originated from.
type DEXProtocol string

const (
	ProtocolPact   DEXProtocol = "Pact"
	ProtocolTiny   DEXProtocol = "Tiny"
	ProtocolBiatec DEXProtocol = "Biatec"
)

// ParseDEXProtocol validates a protocol name.
func ParseDEXProtocol(s string) (DEXProtocol, error) {
	switch DEXProtocol(s) {
	case ProtocolPact, ProtocolTiny, ProtocolBiatec:
		return DEXProtocol(s), nil
	}
	return "", fmt.Errorf("unknown DEX protocol %q", s)
}

func (p *DEXProtocol) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDEXProtocol(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// AMMType identifies the pool mechanism, which determines how direction and
// amounts are decoded from the raw payload.
type AMMType string

const (
	AMMTypeOldAMM                   AMMType = "OldAMM"
	AMMTypeStableSwap               AMMType = "StableSwap"
	AMMTypeConcentratedLiquidityAMM AMMType = "ConcentratedLiquidityAMM"
)

// ParseAMMType validates an AMM type name.
func ParseAMMType(s string) (AMMType, error) {
	switch AMMType(s) {
	case AMMTypeOldAMM, AMMTypeStableSwap, AMMTypeConcentratedLiquidityAMM:
		return AMMType(s), nil
	}
	return "", fmt.Errorf("unknown AMM type %q", s)
}

func (t *AMMType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseAMMType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// LiquidityDirection distinguishes deposits into a pool from withdrawals.
type LiquidityDirection string

const (
	DirectionDeposit  LiquidityDirection = "DepositLiquidity"
	DirectionWithdraw LiquidityDirection = "WithdrawLiquidity"
)

// ParseLiquidityDirection validates a liquidity direction name.
func ParseLiquidityDirection(s string) (LiquidityDirection, error) {
	switch LiquidityDirection(s) {
	case DirectionDeposit, DirectionWithdraw:
		return LiquidityDirection(s), nil
	}
	return "", fmt.Errorf("unknown liquidity direction %q", s)
}

func (d *LiquidityDirection) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseLiquidityDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
