package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotRecord is the persisted form of one published session snapshot.
type SnapshotRecord struct {
	SessionID   string           `json:"session_id"`
	Seq         uint64           `json:"seq"`
	Mode        string           `json:"mode"`
	RecordedAt  time.Time        `json:"recorded_at"`
	State       string           `json:"state"`
	Errors      []string         `json:"errors,omitempty"`
	TokenIn     string           `json:"token_in,omitempty"`
	TokenOut    string           `json:"token_out,omitempty"`
	AmountIn    decimal.Decimal  `json:"amount_in"`
	AmountOut   decimal.Decimal  `json:"amount_out"`
	Provider    string           `json:"provider,omitempty"`
	PriceImpact *decimal.Decimal `json:"price_impact,omitempty"`
	PayloadTo   string           `json:"payload_to,omitempty"`
	PayloadData string           `json:"payload_data,omitempty"`
	PayloadWei  string           `json:"payload_value,omitempty"`
}
