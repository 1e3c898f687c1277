package model

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies a fungible asset: the chain's native coin or an ERC20 contract.
type Token struct {
	Address  common.Address `json:"address"`
	Native   bool           `json:"native,omitempty"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// NativeToken returns the native coin reference.
func NativeToken(symbol string, decimals uint8) Token {
	return Token{Native: true, Symbol: symbol, Decimals: decimals}
}

// Equal compares coin identity. Symbol and decimals are metadata only.
func (t Token) Equal(other Token) bool {
	if t.Native || other.Native {
		return t.Native == other.Native
	}
	return t.Address == other.Address
}

// ProtocolAddress returns the contract used on-chain for this token; native maps to wrapped.
func (t Token) ProtocolAddress(wrapped common.Address) common.Address {
	if t.Native {
		return wrapped
	}
	return t.Address
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	if t.Native {
		return "native"
	}
	return strings.ToLower(t.Address.Hex())
}

// SameToken reports whether two optional tokens refer to the same coin.
func SameToken(a, b *Token) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// SortsBefore reports whether a orders before b by address bytes, the protocol's token0 rule.
func SortsBefore(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// IsWrapPair reports whether the pair is the native coin and its wrapped contract.
func IsWrapPair(a, b Token, wrapped common.Address) bool {
	if wrapped == (common.Address{}) {
		return false
	}
	if a.Native && !b.Native {
		return b.Address == wrapped
	}
	if b.Native && !a.Native {
		return a.Address == wrapped
	}
	return false
}
