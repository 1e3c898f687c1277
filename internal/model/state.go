package model

import "github.com/shopspring/decimal"

// StateKind tags the three-way readiness state shared by the engine, reconcilers and aggregator.
type StateKind int

const (
	StateNotReady StateKind = iota
	StateLoading
	StateReady
)

func (k StateKind) String() string {
	switch k {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "not_ready"
	}
}

// AggregatedState is the session's single readiness signal. Errors are published separately.
type AggregatedState struct {
	Kind    StateKind
	Payload *TransactionPayload
}

// AllowanceRecord is the on-chain allowance observed for a spender.
type AllowanceRecord struct {
	Token Token           `json:"token"`
	Value decimal.Decimal `json:"value"`
}

// PendingApprovalState masks on-chain confirmation latency of approve/revoke transactions.
type PendingApprovalState int

const (
	PendingIdle PendingApprovalState = iota
	PendingApproving
	PendingApproved
	PendingRevoking
)

func (p PendingApprovalState) String() string {
	switch p {
	case PendingApproving:
		return "pending"
	case PendingApproved:
		return "approved"
	case PendingRevoking:
		return "revoking"
	default:
		return "idle"
	}
}
