package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rebata/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, customer_id, order_number, payment_status,
		        subtotal, tax, shipping, discount, total, cashback, metadata,
		        created_at, updated_at
		 FROM orders WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindOrderByIDForUpdate(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, customer_id, order_number, payment_status,
		        subtotal, tax, shipping, discount, total, cashback, metadata,
		        created_at, updated_at
		 FROM orders WHERE company_id = ? AND id = ?
		 FOR UPDATE`,
		companyID,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindReturnRequestByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.ReturnRequest, error) {
	var request domain.ReturnRequest
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, order_id, refund_amount, status, created_at, updated_at
		 FROM return_requests WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) UpdateCashback(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, annotation datatypes.JSON) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET cashback = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
		annotation,
		time.Now().UTC(),
		companyID,
		id,
	).Error
}
