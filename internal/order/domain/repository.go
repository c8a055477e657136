package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	FindOrderByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Order, error)
	FindOrderByIDForUpdate(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Order, error)
	FindReturnRequestByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*ReturnRequest, error)
	UpdateCashback(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, annotation datatypes.JSON) error
}
