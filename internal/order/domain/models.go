package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment statuses an order can carry. The dashboard owns the order
// lifecycle; the cashback engine only reads these.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

// Return request statuses.
const (
	ReturnStatusPending   = "PENDING"
	ReturnStatusApproved  = "APPROVED"
	ReturnStatusCompleted = "COMPLETED"
	ReturnStatusRejected  = "REJECTED"
)

// Order is owned by the dashboard's order pipeline. The cashback engine
// reads its monetary fields and rewrites only the cashback annotation.
type Order struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID     snowflake.ID      `gorm:"not null;index" json:"company_id"`
	CustomerID    snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	OrderNumber   string            `gorm:"type:text;not null" json:"order_number"`
	PaymentStatus string            `gorm:"type:text;not null;default:PENDING" json:"payment_status"`
	Subtotal      decimal.Decimal   `gorm:"type:numeric;not null" json:"subtotal"`
	Tax           decimal.Decimal   `gorm:"type:numeric;not null" json:"tax"`
	Shipping      decimal.Decimal   `gorm:"type:numeric;not null" json:"shipping"`
	Discount      decimal.Decimal   `gorm:"type:numeric;not null" json:"discount"`
	Total         decimal.Decimal   `gorm:"type:numeric;not null" json:"total"`
	Cashback      datatypes.JSON    `gorm:"type:jsonb" json:"cashback,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// ReturnRequest is read-only here; return approval tooling owns it.
type ReturnRequest struct {
	ID           snowflake.ID        `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID        `gorm:"not null;index" json:"company_id"`
	OrderID      snowflake.ID        `gorm:"not null;index" json:"order_id"`
	RefundAmount decimal.NullDecimal `gorm:"type:numeric" json:"refund_amount"`
	Status       string              `gorm:"type:text;not null;default:PENDING" json:"status"`
	CreatedAt    time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ReturnRequest) TableName() string { return "return_requests" }

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidID      = errors.New("invalid_id")
)
