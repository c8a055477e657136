package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/rebata/pkg/db/pagination"
)

// Reasons an apply call no-ops. These are normal outcomes of a lifecycle
// that fires the same trigger multiple times, not errors.
const (
	ReasonOrderNotFound        = "order_not_found"
	ReasonPaymentNotCompleted  = "payment_not_completed"
	ReasonAlreadyApplied       = "already_applied"
	ReasonPercentNotConfigured = "percent_not_configured"
	ReasonCashbackZero         = "cashback_zero"
)

// Reasons a reverse call no-ops.
const (
	ReasonReturnOrOrderNotFound = "return_or_order_not_found"
	ReasonRefundAmountMissing   = "refund_amount_missing"
	ReasonReturnNotApproved     = "return_not_approved"
	ReasonNoCashbackOnOrder     = "no_cashback_on_order"
	ReasonInvalidCashbackAmount = "invalid_cashback_amount"
	ReasonAlreadyReversed       = "already_reversed"
	ReasonReverseZero           = "reverse_zero"
	ReasonReversalExhausted     = "reversal_exhausted"
)

type ApplyRequest struct {
	OrderID   string
	ChangedBy string
}

type ApplyResult struct {
	Applied   bool   `json:"applied"`
	Reason    string `json:"reason,omitempty"`
	Amount    string `json:"amount,omitempty"`
	ProgramID string `json:"program_id,omitempty"`
}

type ReverseRequest struct {
	ReturnRequestID string
	ChangedBy       string
}

type ReverseResult struct {
	Reversed bool    `json:"reversed"`
	Reason   string  `json:"reason,omitempty"`
	Amount   string  `json:"amount,omitempty"`
	Ratio    float64 `json:"ratio,omitempty"`
}

type ListAccountsRequest struct {
	pagination.Pagination
	CustomerID string
}

type ListAccountsResponse struct {
	pagination.PageInfo
	Accounts []LoyaltyAccount `json:"accounts"`
}

type OrderCashbackResponse struct {
	Annotation Annotation    `json:"annotation"`
	Entries    []LedgerEntry `json:"entries"`
}

type Service interface {
	// ApplyCashbackForPaidOrder credits the customer's loyalty balance for
	// a payment-completed order, exactly once per order.
	ApplyCashbackForPaidOrder(ctx context.Context, req ApplyRequest) (ApplyResult, error)

	// ReverseCashbackForReturn claws back the proportional slice of a
	// previously applied credit, exactly once per return request.
	ReverseCashbackForReturn(ctx context.Context, req ReverseRequest) (ReverseResult, error)

	// EnsureProgram finds the company's cashback program, creating a
	// disabled-by-default one when none exists.
	EnsureProgram(ctx context.Context, createdBy string) (CashbackProgram, error)

	ListAccounts(ctx context.Context, req ListAccountsRequest) (ListAccountsResponse, error)
	GetOrderCashback(ctx context.Context, orderID string) (OrderCashbackResponse, error)
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
)
