package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/rebata/internal/company/domain"
	"gorm.io/gorm"
)

const (
	defaultCompanyName = "Main"
	defaultCompanySlug = "main"
)

// EnsureDefaultCompany seeds the default company for startup bootstrap.
func EnsureDefaultCompany(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureDefaultCompanyTx(ctx, tx, node.Generate())
		return err
	})
}

// EnsureDefaultCompanyWithID seeds the default company with a fixed ID,
// used when DEFAULT_COMPANY pins the bootstrap tenant.
func EnsureDefaultCompanyWithID(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureDefaultCompanyTx(ctx, tx, snowflake.ID(id))
		return err
	})
}

func ensureDefaultCompanyTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (companydomain.Company, error) {
	var company companydomain.Company
	err := tx.WithContext(ctx).Where("slug = ?", defaultCompanySlug).First(&company).Error
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return company, err
	}

	company = companydomain.Company{
		ID:        id,
		Name:      defaultCompanyName,
		Slug:      defaultCompanySlug,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&company).Error; err != nil {
		return company, err
	}
	return company, nil
}
