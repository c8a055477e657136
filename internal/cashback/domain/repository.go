package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rebata/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAccountsFilter struct {
	CustomerID snowflake.ID
}

// Repository methods take the caller's *gorm.DB so they compose into the
// caller's transaction.
type Repository interface {
	FindOldestProgram(ctx context.Context, db *gorm.DB, companyID snowflake.ID, programType string) (*CashbackProgram, error)
	InsertProgram(ctx context.Context, db *gorm.DB, program *CashbackProgram) error

	FindAccount(ctx context.Context, db *gorm.DB, customerID, programID snowflake.ID) (*LoyaltyAccount, error)
	FindAccountForUpdate(ctx context.Context, db *gorm.DB, customerID, programID snowflake.ID) (*LoyaltyAccount, error)
	// InsertAccountIfAbsent inserts the account unless the composite
	// (customer_id, program_id) key already exists.
	InsertAccountIfAbsent(ctx context.Context, db *gorm.DB, account *LoyaltyAccount) error
	UpdateAccountBalances(ctx context.Context, db *gorm.DB, account *LoyaltyAccount) error
	ListAccounts(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListAccountsFilter, page pagination.Pagination) ([]*LoyaltyAccount, error)

	// InsertLedgerEntry appends the entry, reporting false when the
	// (order_id, entry_type, return_request_id) key already exists.
	InsertLedgerEntry(ctx context.Context, db *gorm.DB, entry *LedgerEntry) (bool, error)
	ListLedgerEntriesByOrder(ctx context.Context, db *gorm.DB, companyID, orderID snowflake.ID) ([]LedgerEntry, error)
}
