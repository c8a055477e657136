package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/rebata/internal/audit/domain"
	"github.com/smallbiznis/rebata/internal/cashback/domain"
	"github.com/smallbiznis/rebata/internal/clock"
	"github.com/smallbiznis/rebata/internal/companyctx"
	"github.com/smallbiznis/rebata/internal/config"
	"github.com/smallbiznis/rebata/internal/metrics"
	orderdomain "github.com/smallbiznis/rebata/internal/order/domain"
	"github.com/smallbiznis/rebata/pkg/db"
	"github.com/smallbiznis/rebata/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Defaults  *config.ProgramDefaultsHolder
	Repo      domain.Repository
	OrderRepo orderdomain.Repository
	AuditSvc  auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	defaults  *config.ProgramDefaultsHolder
	repo      domain.Repository
	orderRepo orderdomain.Repository
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("cashback.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		defaults:  p.Defaults,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) ApplyCashbackForPaidOrder(ctx context.Context, req domain.ApplyRequest) (domain.ApplyResult, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return domain.ApplyResult{}, domain.ErrInvalidCompany
	}
	orderID, err := s.parseID(req.OrderID)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	order, err := s.orderRepo.FindOrderByID(ctx, s.db, companyID, orderID)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	if order == nil {
		return s.noopApply(domain.ReasonOrderNotFound), nil
	}
	if order.PaymentStatus != orderdomain.PaymentStatusCompleted {
		return s.noopApply(domain.ReasonPaymentNotCompleted), nil
	}
	if domain.ParseAnnotation(order.Cashback).Applied {
		return s.noopApply(domain.ReasonAlreadyApplied), nil
	}

	program, err := s.ensureProgram(ctx, s.db, companyID, req.ChangedBy)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	percent := money.Parse(program.Percent)
	if percent.Sign() <= 0 {
		return s.noopApply(domain.ReasonPercentNotConfigured), nil
	}

	base := order.Total
	if program.Base == domain.BaseSubtotal {
		base = order.Subtotal
	}
	amount := base.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	if amount.Sign() <= 0 {
		return s.noopApply(domain.ReasonCashbackZero), nil
	}

	applied := false
	reason := ""
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The annotation check above was read-then-act; everything from
		// here re-validates under the transaction's isolation.
		locked, err := s.orderRepo.FindOrderByIDForUpdate(ctx, tx, companyID, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			reason = domain.ReasonOrderNotFound
			return nil
		}
		if domain.ParseAnnotation(locked.Cashback).Applied {
			reason = domain.ReasonAlreadyApplied
			return nil
		}

		now := s.clock.Now()
		inserted, err := s.repo.InsertLedgerEntry(ctx, tx, &domain.LedgerEntry{
			ID:         s.genID.Generate(),
			CompanyID:  companyID,
			ProgramID:  program.ID,
			CustomerID: locked.CustomerID,
			OrderID:    orderID,
			EntryType:  domain.EntryTypeEarn,
			Amount:     money.FromDecimal(amount),
			CreatedBy:  req.ChangedBy,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			reason = domain.ReasonAlreadyApplied
			return nil
		}

		account, err := s.ensureAccount(ctx, tx, companyID, locked.CustomerID, program.ID)
		if err != nil {
			return err
		}
		if err := s.credit(ctx, tx, account, amount); err != nil {
			return err
		}

		annotation := domain.Annotation{
			Applied:   true,
			ProgramID: program.ID.String(),
			Percent:   program.Percent,
			Base:      program.Base,
			Amount:    money.FromDecimal(amount),
			AppliedAt: &now,
			Reversals: map[string]string{},
		}
		raw, err := annotation.JSON()
		if err != nil {
			return err
		}
		if err := s.orderRepo.UpdateCashback(ctx, tx, companyID, orderID, raw); err != nil {
			return err
		}

		s.writeAuditLog(ctx, companyID, req.ChangedBy, "cashback.applied", orderID, map[string]any{
			"order_id":   orderID.String(),
			"program_id": program.ID.String(),
			"amount":     money.FromDecimal(amount),
		})

		applied = true
		return nil
	})
	if err != nil {
		return domain.ApplyResult{}, err
	}
	if !applied {
		return s.noopApply(reason), nil
	}

	if s.metrics != nil {
		s.metrics.RecordApplied(amount.InexactFloat64())
	}
	s.log.Info("cashback applied",
		zap.String("order_id", orderID.String()),
		zap.String("amount", money.FromDecimal(amount)),
		zap.String("program_id", program.ID.String()),
	)

	return domain.ApplyResult{
		Applied:   true,
		Amount:    money.FromDecimal(amount),
		ProgramID: program.ID.String(),
	}, nil
}

func (s *Service) ReverseCashbackForReturn(ctx context.Context, req domain.ReverseRequest) (domain.ReverseResult, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return domain.ReverseResult{}, domain.ErrInvalidCompany
	}
	returnRequestID, err := s.parseID(req.ReturnRequestID)
	if err != nil {
		return domain.ReverseResult{}, err
	}

	request, err := s.orderRepo.FindReturnRequestByID(ctx, s.db, companyID, returnRequestID)
	if err != nil {
		return domain.ReverseResult{}, err
	}
	if request == nil {
		return s.noopReverse(domain.ReasonReturnOrOrderNotFound), nil
	}
	if !request.RefundAmount.Valid {
		return s.noopReverse(domain.ReasonRefundAmountMissing), nil
	}
	switch request.Status {
	case orderdomain.ReturnStatusApproved, orderdomain.ReturnStatusCompleted:
	default:
		return s.noopReverse(domain.ReasonReturnNotApproved), nil
	}

	reversed := false
	reason := ""
	var reverseAmount decimal.Decimal
	var ratio decimal.Decimal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindOrderByIDForUpdate(ctx, tx, companyID, request.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			reason = domain.ReasonReturnOrOrderNotFound
			return nil
		}

		annotation := domain.ParseAnnotation(order.Cashback)
		if !annotation.Applied {
			reason = domain.ReasonNoCashbackOnOrder
			return nil
		}
		appliedAmount := money.Parse(annotation.Amount)
		if appliedAmount.Sign() <= 0 {
			reason = domain.ReasonInvalidCashbackAmount
			return nil
		}
		if _, exists := annotation.Reversals[returnRequestID.String()]; exists {
			reason = domain.ReasonAlreadyReversed
			return nil
		}

		// ratio = clamp(refund / max(total, 0.01), 0, 1)
		denominator := decimal.Max(order.Total, decimal.NewFromFloat(0.01))
		ratio = request.RefundAmount.Decimal.Div(denominator)
		if ratio.Sign() < 0 {
			ratio = decimal.Zero
		}
		if ratio.GreaterThan(decimal.NewFromInt(1)) {
			ratio = decimal.NewFromInt(1)
		}
		reverseAmount = appliedAmount.Mul(ratio).Round(2)
		if reverseAmount.Sign() <= 0 {
			reason = domain.ReasonReverseZero
			return nil
		}

		// Cumulative reversals never exceed the originally applied amount;
		// refunds inconsistent with the order total get clamped, not obeyed.
		remaining := appliedAmount.Sub(annotation.ReversedTotal())
		if remaining.Sign() <= 0 {
			reason = domain.ReasonReversalExhausted
			return nil
		}
		if reverseAmount.GreaterThan(remaining) {
			s.log.Warn("reversal clamped to remaining applied amount",
				zap.String("order_id", order.ID.String()),
				zap.String("return_request_id", returnRequestID.String()),
				zap.String("requested", money.FromDecimal(reverseAmount)),
				zap.String("remaining", money.FromDecimal(remaining)),
			)
			reverseAmount = remaining
		}

		now := s.clock.Now()
		inserted, err := s.repo.InsertLedgerEntry(ctx, tx, &domain.LedgerEntry{
			ID:              s.genID.Generate(),
			CompanyID:       companyID,
			ProgramID:       s.parseProgramID(annotation.ProgramID),
			CustomerID:      order.CustomerID,
			OrderID:         order.ID,
			EntryType:       domain.EntryTypeReverse,
			ReturnRequestID: returnRequestID,
			Amount:          money.FromDecimal(reverseAmount),
			CreatedBy:       req.ChangedBy,
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			reason = domain.ReasonAlreadyReversed
			return nil
		}

		account, err := s.ensureAccount(ctx, tx, companyID, order.CustomerID, s.parseProgramID(annotation.ProgramID))
		if err != nil {
			return err
		}
		if err := s.debit(ctx, tx, account, reverseAmount); err != nil {
			return err
		}

		if annotation.Reversals == nil {
			annotation.Reversals = map[string]string{}
		}
		annotation.Reversals[returnRequestID.String()] = money.FromDecimal(reverseAmount)
		raw, err := annotation.JSON()
		if err != nil {
			return err
		}
		if err := s.orderRepo.UpdateCashback(ctx, tx, companyID, order.ID, raw); err != nil {
			return err
		}

		s.writeAuditLog(ctx, companyID, req.ChangedBy, "cashback.reversed", order.ID, map[string]any{
			"order_id":          order.ID.String(),
			"return_request_id": returnRequestID.String(),
			"amount":            money.FromDecimal(reverseAmount),
			"ratio":             ratio.String(),
		})

		reversed = true
		return nil
	})
	if err != nil {
		return domain.ReverseResult{}, err
	}
	if !reversed {
		return s.noopReverse(reason), nil
	}

	if s.metrics != nil {
		s.metrics.RecordReversed(reverseAmount.InexactFloat64())
	}
	s.log.Info("cashback reversed",
		zap.String("return_request_id", returnRequestID.String()),
		zap.String("amount", money.FromDecimal(reverseAmount)),
	)

	return domain.ReverseResult{
		Reversed: true,
		Amount:   money.FromDecimal(reverseAmount),
		Ratio:    ratio.InexactFloat64(),
	}, nil
}

// EnsureProgram resolves the company's cashback program, creating a
// disabled-by-default one when none exists.
func (s *Service) EnsureProgram(ctx context.Context, createdBy string) (domain.CashbackProgram, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return domain.CashbackProgram{}, domain.ErrInvalidCompany
	}
	program, err := s.ensureProgram(ctx, s.db, companyID, createdBy)
	if err != nil {
		return domain.CashbackProgram{}, err
	}
	return *program, nil
}

func (s *Service) ensureProgram(ctx context.Context, conn *gorm.DB, companyID snowflake.ID, createdBy string) (*domain.CashbackProgram, error) {
	program, err := s.repo.FindOldestProgram(ctx, conn, companyID, domain.ProgramTypeCashback)
	if err != nil {
		return nil, err
	}
	if program != nil {
		return program, nil
	}

	defaults := s.defaults.Get()
	candidate := &domain.CashbackProgram{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Type:      domain.ProgramTypeCashback,
		Status:    domain.ProgramStatusActive,
		Percent:   money.FromDecimal(money.Parse(defaults.Percent)),
		Base:      defaults.Base,
		Trigger:   defaults.Trigger,
		CreatedBy: createdBy,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertProgram(ctx, conn, candidate); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// A concurrent first-call won the create; use its program.
			return s.repo.FindOldestProgram(ctx, conn, companyID, domain.ProgramTypeCashback)
		}
		return nil, err
	}
	return candidate, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, companyID, customerID, programID snowflake.ID) (*domain.LoyaltyAccount, error) {
	now := s.clock.Now()
	candidate := &domain.LoyaltyAccount{
		ID:               s.genID.Generate(),
		CompanyID:        companyID,
		CustomerID:       customerID,
		ProgramID:        programID,
		CurrentPoints:    money.Zero,
		TotalEarned:      money.Zero,
		TotalRedeemed:    money.Zero,
		Status:           domain.AccountStatusActive,
		JoinDate:         now,
		LastPointsEarned: money.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertAccountIfAbsent(ctx, tx, candidate); err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, err
	}
	account, err := s.repo.FindAccountForUpdate(ctx, tx, customerID, programID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("loyalty account missing after ensure")
	}
	return account, nil
}

// credit increments currentPoints and totalEarned. Must run inside the
// caller's transaction with the account row locked.
func (s *Service) credit(ctx context.Context, tx *gorm.DB, account *domain.LoyaltyAccount, amount decimal.Decimal) error {
	now := s.clock.Now()
	account.CurrentPoints = money.FromDecimal(money.Parse(account.CurrentPoints).Add(amount))
	account.TotalEarned = money.FromDecimal(money.Parse(account.TotalEarned).Add(amount))
	account.LastActivity = &now
	account.LastPointsEarned = money.FromDecimal(amount)
	account.UpdatedAt = now
	return s.repo.UpdateAccountBalances(ctx, tx, account)
}

// debit decrements currentPoints and totalEarned, each floored at zero
// independently; the two fields may clamp at different points when prior
// redemption has let them diverge.
func (s *Service) debit(ctx context.Context, tx *gorm.DB, account *domain.LoyaltyAccount, amount decimal.Decimal) error {
	now := s.clock.Now()
	current := money.Parse(account.CurrentPoints)
	earned := money.Parse(account.TotalEarned)
	account.CurrentPoints = money.FromDecimal(current.Sub(decimal.Min(current, amount)))
	account.TotalEarned = money.FromDecimal(earned.Sub(decimal.Min(earned, amount)))
	account.LastActivity = &now
	account.UpdatedAt = now
	return s.repo.UpdateAccountBalances(ctx, tx, account)
}

func (s *Service) writeAuditLog(ctx context.Context, companyID snowflake.ID, changedBy, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, &companyID, changedBy, action, "order", &target, metadata); err != nil {
		s.log.Warn("failed to write cashback audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) noopApply(reason string) domain.ApplyResult {
	if s.metrics != nil {
		s.metrics.RecordNoop("apply", reason)
	}
	return domain.ApplyResult{Reason: reason}
}

func (s *Service) noopReverse(reason string) domain.ReverseResult {
	if s.metrics != nil {
		s.metrics.RecordNoop("reverse", reason)
	}
	return domain.ReverseResult{Reason: reason}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) parseProgramID(value string) snowflake.ID {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return id
}
