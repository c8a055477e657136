package migration

import (
	auditdomain "github.com/smallbiznis/rebata/internal/audit/domain"
	cashbackdomain "github.com/smallbiznis/rebata/internal/cashback/domain"
	companydomain "github.com/smallbiznis/rebata/internal/company/domain"
	"github.com/smallbiznis/rebata/internal/config"
	orderdomain "github.com/smallbiznis/rebata/internal/order/domain"
	"github.com/smallbiznis/rebata/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite deployments rely on the model schema.
			if err := conn.AutoMigrate(
				&companydomain.Company{},
				&orderdomain.Order{},
				&orderdomain.ReturnRequest{},
				&cashbackdomain.CashbackProgram{},
				&cashbackdomain.LoyaltyAccount{},
				&cashbackdomain.LedgerEntry{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		if cfg.DefaultCompanyID != 0 {
			return seed.EnsureDefaultCompanyWithID(conn, cfg.DefaultCompanyID)
		}
		return seed.EnsureDefaultCompany(conn)
	}),
)
