package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) (string, error)
		valid []string
	}{
		{
			name: "asset type",
			parse: func(s string) (string, error) {
				v, err := ParseAssetType(s)
				return string(v), err
			},
			valid: []string{"ASA", "ARC200"},
		},
		{
			name: "tx state",
			parse: func(s string) (string, error) {
				v, err := ParseTxState(s)
				return string(v), err
			},
			valid: []string{"TxPool", "Confirmed"},
		},
		{
			name: "dex protocol",
			parse: func(s string) (string, error) {
				v, err := ParseDEXProtocol(s)
				return string(v), err
			},
			valid: []string{"Pact", "Tiny", "Biatec"},
		},
		{
			name: "amm type",
			parse: func(s string) (string, error) {
				v, err := ParseAMMType(s)
				return string(v), err
			},
			valid: []string{"OldAMM", "StableSwap", "ConcentratedLiquidityAMM"},
		},
		{
			name: "liquidity direction",
			parse: func(s string) (string, error) {
				v, err := ParseLiquidityDirection(s)
				return string(v), err
			},
			valid: []string{"DepositLiquidity", "WithdrawLiquidity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range tt.valid {
				got, err := tt.parse(name)
				require.NoError(t, err)
				assert.Equal(t, name, got)
			}

			for _, bad := range []string{"", "bogus", "txpool", "ASA "} {
				_, err := tt.parse(bad)
				assert.Error(t, err, "name %q must be rejected", bad)
			}
		})
	}
}

func TestEnumJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(ProtocolBiatec)
	require.NoError(t, err)
	assert.Equal(t, `"Biatec"`, string(b))

	var p DEXProtocol
	require.NoError(t, json.Unmarshal([]byte(`"Pact"`), &p))
	assert.Equal(t, ProtocolPact, p)

	var s TxState
	require.NoError(t, json.Unmarshal([]byte(`"Confirmed"`), &s))
	assert.Equal(t, TxStateConfirmed, s)
}

func TestEnumJSONRejectsUnknownNames(t *testing.T) {
	var p DEXProtocol
	assert.Error(t, json.Unmarshal([]byte(`"Uniswap"`), &p))

	var a AMMType
	assert.Error(t, json.Unmarshal([]byte(`"CLMM"`), &a))

	var d LiquidityDirection
	assert.Error(t, json.Unmarshal([]byte(`"Burn"`), &d))

	var s TxState
	assert.Error(t, json.Unmarshal([]byte(`0`), &s), "ordinals are not a valid encoding")
}
