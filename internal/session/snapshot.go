package session

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"liquidityTrade/internal/allowance"
	"liquidityTrade/internal/model"
	"liquidityTrade/internal/quote"
)

// SideSnapshot is the approval view of one token the trade spends.
type SideSnapshot struct {
	Side      model.Side
	Token     *model.Token
	Tracked   bool
	Allowance allowance.State
	Pending   model.PendingApprovalState
}

// Snapshot is everything a consumer renders after one coordination step.
type Snapshot struct {
	SessionID string
	Seq       uint64
	Mode      Mode

	State  model.AggregatedState
	Errors []*model.TradeError
	Quote  quote.State

	TokenIn   *model.Token
	TokenOut  *model.Token
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
	Direction model.TradeDirection
	TickMode  model.TickMode
	Lower     *int32
	Upper     *int32

	Sides []SideSnapshot
}

// PrimaryError returns the first error, if any.
func (s Snapshot) PrimaryError() *model.TradeError {
	if len(s.Errors) == 0 {
		return nil
	}
	return s.Errors[0]
}

// Record flattens the snapshot for storage.
func (s Snapshot) Record(at time.Time) model.SnapshotRecord {
	rec := model.SnapshotRecord{
		SessionID:  s.SessionID,
		Seq:        s.Seq,
		Mode:       s.Mode.String(),
		RecordedAt: at.UTC(),
		State:      s.State.Kind.String(),
		AmountIn:   s.AmountIn,
		AmountOut:  s.AmountOut,
	}
	for _, err := range s.Errors {
		rec.Errors = append(rec.Errors, err.Error())
	}
	if s.TokenIn != nil {
		rec.TokenIn = s.TokenIn.String()
	}
	if s.TokenOut != nil {
		rec.TokenOut = s.TokenOut.String()
	}
	if q := s.Quote.Quote; q != nil {
		rec.Provider = q.Provider
		rec.PriceImpact = q.PriceImpact
	}
	if p := s.State.Payload; p != nil {
		rec.PayloadTo = p.To.Hex()
		rec.PayloadData = hexutil.Encode(p.Data)
		if p.Value != nil {
			rec.PayloadWei = p.Value.String()
		}
	}
	return rec
}
