package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rebata/internal/cashback/domain"
	"github.com/smallbiznis/rebata/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOldestProgram(ctx context.Context, db *gorm.DB, companyID snowflake.ID, programType string) (*domain.CashbackProgram, error) {
	var program domain.CashbackProgram
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, type, status, percent, base, trigger_event, created_by, created_at
		 FROM cashback_programs
		 WHERE company_id = ? AND type = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		companyID,
		programType,
	).Scan(&program).Error
	if err != nil {
		return nil, err
	}
	if program.ID == 0 {
		return nil, nil
	}
	return &program, nil
}

func (r *repo) InsertProgram(ctx context.Context, db *gorm.DB, program *domain.CashbackProgram) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO cashback_programs (id, company_id, type, status, percent, base, trigger_event, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		program.ID,
		program.CompanyID,
		program.Type,
		program.Status,
		program.Percent,
		program.Base,
		program.Trigger,
		program.CreatedBy,
		program.CreatedAt,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, customerID, programID snowflake.ID) (*domain.LoyaltyAccount, error) {
	return r.findAccount(ctx, db, customerID, programID, "")
}

func (r *repo) FindAccountForUpdate(ctx context.Context, db *gorm.DB, customerID, programID snowflake.ID) (*domain.LoyaltyAccount, error) {
	return r.findAccount(ctx, db, customerID, programID, " FOR UPDATE")
}

func (r *repo) findAccount(ctx context.Context, db *gorm.DB, customerID, programID snowflake.ID, lock string) (*domain.LoyaltyAccount, error) {
	var account domain.LoyaltyAccount
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, customer_id, program_id, current_points, total_earned,
		        total_redeemed, status, join_date, last_activity, last_points_earned,
		        created_at, updated_at
		 FROM loyalty_accounts
		 WHERE customer_id = ? AND program_id = ?`+lock,
		customerID,
		programID,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) InsertAccountIfAbsent(ctx context.Context, db *gorm.DB, account *domain.LoyaltyAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO loyalty_accounts (
			id, company_id, customer_id, program_id, current_points, total_earned,
			total_redeemed, status, join_date, last_points_earned, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id, program_id) DO NOTHING`,
		account.ID,
		account.CompanyID,
		account.CustomerID,
		account.ProgramID,
		account.CurrentPoints,
		account.TotalEarned,
		account.TotalRedeemed,
		account.Status,
		account.JoinDate,
		account.LastPointsEarned,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) UpdateAccountBalances(ctx context.Context, db *gorm.DB, account *domain.LoyaltyAccount) error {
	return db.WithContext(ctx).Exec(
		`UPDATE loyalty_accounts
		 SET current_points = ?, total_earned = ?, total_redeemed = ?,
		     last_activity = ?, last_points_earned = ?, updated_at = ?
		 WHERE id = ?`,
		account.CurrentPoints,
		account.TotalEarned,
		account.TotalRedeemed,
		account.LastActivity,
		account.LastPointsEarned,
		account.UpdatedAt,
		account.ID,
	).Error
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListAccountsFilter, page pagination.Pagination) ([]*domain.LoyaltyAccount, error) {
	var accounts []*domain.LoyaltyAccount
	stmt := db.WithContext(ctx).
		Model(&domain.LoyaltyAccount{}).
		Where("company_id = ?", companyID)
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) InsertLedgerEntry(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO loyalty_ledger_entries (
			id, company_id, program_id, customer_id, order_id, entry_type,
			return_request_id, amount, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id, entry_type, return_request_id) DO NOTHING`,
		entry.ID,
		entry.CompanyID,
		entry.ProgramID,
		entry.CustomerID,
		entry.OrderID,
		entry.EntryType,
		entry.ReturnRequestID,
		entry.Amount,
		entry.CreatedBy,
		entry.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListLedgerEntriesByOrder(ctx context.Context, db *gorm.DB, companyID, orderID snowflake.ID) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, program_id, customer_id, order_id, entry_type,
		        return_request_id, amount, created_by, created_at
		 FROM loyalty_ledger_entries
		 WHERE company_id = ? AND order_id = ?
		 ORDER BY created_at ASC, id ASC`,
		companyID,
		orderID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
