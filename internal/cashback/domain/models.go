package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProgramTypeCashback is the only program type this engine owns. The
// registry keeps at most one per company.
const ProgramTypeCashback = "CASHBACK"

const (
	ProgramStatusActive   = "ACTIVE"
	ProgramStatusDisabled = "DISABLED"
)

// Base selects which order amount the reward percent applies to.
const (
	BaseSubtotal = "subtotal"
	BaseTotal    = "total"
)

// TriggerPaymentCompleted is the only supported crediting trigger.
const TriggerPaymentCompleted = "payment_completed"

const AccountStatusActive = "ACTIVE"

// CashbackProgram is the company-scoped reward configuration. Created
// lazily with a zero percent rule-set on first apply; mutated only by
// configuration tooling outside this engine.
type CashbackProgram struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_cashback_programs_company_type,priority:1" json:"company_id"`
	Type      string       `gorm:"type:text;not null;uniqueIndex:ux_cashback_programs_company_type,priority:2" json:"type"`
	Status    string       `gorm:"type:text;not null;default:ACTIVE" json:"status"`
	Percent   string       `gorm:"type:text;not null;default:'0.00'" json:"percent"`
	Base      string       `gorm:"type:text;not null;default:total" json:"base"`
	Trigger   string       `gorm:"column:trigger_event;type:text;not null;default:payment_completed" json:"trigger"`
	CreatedBy string       `gorm:"type:text" json:"created_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CashbackProgram) TableName() string { return "cashback_programs" }

// LoyaltyAccount is the per (company, customer, program) balance record.
// Balances are normalized fixed-2 decimal strings; currentPoints and
// totalEarned never go negative.
type LoyaltyAccount struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID        snowflake.ID `gorm:"not null;index" json:"company_id"`
	CustomerID       snowflake.ID `gorm:"not null;uniqueIndex:ux_loyalty_accounts_customer_program,priority:1" json:"customer_id"`
	ProgramID        snowflake.ID `gorm:"not null;uniqueIndex:ux_loyalty_accounts_customer_program,priority:2" json:"program_id"`
	CurrentPoints    string       `gorm:"type:text;not null;default:'0.00'" json:"current_points"`
	TotalEarned      string       `gorm:"type:text;not null;default:'0.00'" json:"total_earned"`
	TotalRedeemed    string       `gorm:"type:text;not null;default:'0.00'" json:"total_redeemed"`
	Status           string       `gorm:"type:text;not null;default:ACTIVE" json:"status"`
	JoinDate         time.Time    `gorm:"not null" json:"join_date"`
	LastActivity     *time.Time   `gorm:"" json:"last_activity,omitempty"`
	LastPointsEarned string       `gorm:"type:text;not null;default:'0.00'" json:"last_points_earned"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (LoyaltyAccount) TableName() string { return "loyalty_accounts" }

// Ledger entry types.
const (
	EntryTypeEarn    = "earn"
	EntryTypeReverse = "reverse"
)

// LedgerEntry is the append-only record of a single credit or clawback.
// The unique index on (order_id, entry_type, return_request_id) is the
// exactly-once gate: an earn entry carries a zero return request ID, a
// reverse entry carries the return it settles.
type LedgerEntry struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID       snowflake.ID `gorm:"not null;index" json:"company_id"`
	ProgramID       snowflake.ID `gorm:"not null;index" json:"program_id"`
	CustomerID      snowflake.ID `gorm:"not null;index" json:"customer_id"`
	OrderID         snowflake.ID `gorm:"not null;uniqueIndex:ux_loyalty_ledger_order_event,priority:1" json:"order_id"`
	EntryType       string       `gorm:"type:text;not null;uniqueIndex:ux_loyalty_ledger_order_event,priority:2" json:"entry_type"`
	ReturnRequestID snowflake.ID `gorm:"not null;default:0;uniqueIndex:ux_loyalty_ledger_order_event,priority:3" json:"return_request_id"`
	Amount          string       `gorm:"type:text;not null" json:"amount"`
	CreatedBy       string       `gorm:"type:text" json:"created_by"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "loyalty_ledger_entries" }
