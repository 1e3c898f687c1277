package config

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ParseAddress validates a hex address.
func ParseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

// ParseAddresses validates a list of hex addresses.
func ParseAddresses(name string, values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, value := range values {
		addr, err := ParseAddress(name, value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseFeeTiers parses pool fee tiers in hundredths of a basis point.
func ParseFeeTiers(values []string) ([]uint32, error) {
	out := make([]uint32, 0, len(values))
	for _, value := range values {
		fee, err := strconv.ParseUint(value, 10, 24)
		if err != nil {
			return nil, fmt.Errorf("invalid fee tier %q: %w", value, err)
		}
		out = append(out, uint32(fee))
	}
	return out, nil
}

// ParsePercent parses a non-negative percentage such as "0.5".
func ParsePercent(name, value string) (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", name, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be within [0, 100], got %s", name, value)
	}
	return pct, nil
}
