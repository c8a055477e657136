package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rebata/internal/cashback/domain"
	"github.com/smallbiznis/rebata/internal/cashback/repository"
	"github.com/smallbiznis/rebata/internal/clock"
	"github.com/smallbiznis/rebata/internal/companyctx"
	"github.com/smallbiznis/rebata/internal/config"
	orderdomain "github.com/smallbiznis/rebata/internal/order/domain"
	orderrepository "github.com/smallbiznis/rebata/internal/order/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	svc       *Service
	node      *snowflake.Node
	clk       *clock.FakeClock
	companyID snowflake.ID
	ctx       context.Context
	orderSeq  int
}

func defaultTestProgram() config.ProgramDefaults {
	return config.ProgramDefaults{
		Percent: "5.00",
		Base:    "total",
		Trigger: "payment_completed",
	}
}

func newTestEnv(t *testing.T, defaults config.ProgramDefaults) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripLockClauses(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.ReturnRequest{},
		&domain.CashbackProgram{},
		&domain.LoyaltyAccount{},
		&domain.LedgerEntry{},
	))

	holder, err := config.NewStaticProgramDefaults(defaults)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := &Service{
		db:        db,
		log:       zaptest.NewLogger(t),
		genID:     node,
		clock:     clk,
		defaults:  holder,
		repo:      repository.Provide(),
		orderRepo: orderrepository.Provide(),
	}

	companyID := node.Generate()
	return &testEnv{
		db:        db,
		svc:       svc,
		node:      node,
		clk:       clk,
		companyID: companyID,
		ctx:       companyctx.WithCompanyID(context.Background(), companyID),
	}
}

func stripLockClauses(db *gorm.DB) {
	strip := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(strings.ReplaceAll(sql, "FOR UPDATE", ""))
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_strip_lock", strip)
	db.Callback().Row().Before("gorm:row").Register("sqlite_strip_lock_row", strip)
}

func (e *testEnv) seedOrder(t *testing.T, subtotal, total, status string) *orderdomain.Order {
	t.Helper()
	subtotalDec, err := decimal.NewFromString(subtotal)
	require.NoError(t, err)
	totalDec, err := decimal.NewFromString(total)
	require.NoError(t, err)

	e.orderSeq++
	now := e.clk.Now()
	order := &orderdomain.Order{
		ID:            e.node.Generate(),
		CompanyID:     e.companyID,
		CustomerID:    e.node.Generate(),
		OrderNumber:   fmt.Sprintf("ORD-%04d", e.orderSeq),
		PaymentStatus: status,
		Subtotal:      subtotalDec,
		Total:         totalDec,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.db.Create(order).Error)
	return order
}

func (e *testEnv) seedReturn(t *testing.T, order *orderdomain.Order, refund, status string) *orderdomain.ReturnRequest {
	t.Helper()
	now := e.clk.Now()
	request := &orderdomain.ReturnRequest{
		ID:        e.node.Generate(),
		CompanyID: e.companyID,
		OrderID:   order.ID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if refund != "" {
		amount, err := decimal.NewFromString(refund)
		require.NoError(t, err)
		request.RefundAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
	}
	require.NoError(t, e.db.Create(request).Error)
	return request
}

func (e *testEnv) apply(t *testing.T, order *orderdomain.Order) domain.ApplyResult {
	t.Helper()
	result, err := e.svc.ApplyCashbackForPaidOrder(e.ctx, domain.ApplyRequest{
		OrderID:   order.ID.String(),
		ChangedBy: "tester",
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) reverse(t *testing.T, request *orderdomain.ReturnRequest) domain.ReverseResult {
	t.Helper()
	result, err := e.svc.ReverseCashbackForReturn(e.ctx, domain.ReverseRequest{
		ReturnRequestID: request.ID.String(),
		ChangedBy:       "tester",
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) account(t *testing.T, customerID snowflake.ID) *domain.LoyaltyAccount {
	t.Helper()
	var account domain.LoyaltyAccount
	err := e.db.Where("customer_id = ?", customerID).First(&account).Error
	require.NoError(t, err)
	return &account
}

func (e *testEnv) ledgerCount(t *testing.T, orderID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&domain.LedgerEntry{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func (e *testEnv) reloadAnnotation(t *testing.T, orderID snowflake.ID) domain.Annotation {
	t.Helper()
	var order orderdomain.Order
	require.NoError(t, e.db.First(&order, "id = ?", orderID).Error)
	return domain.ParseAnnotation(order.Cashback)
}

func TestApplyCreditsOncePerOrder(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)

	first := env.apply(t, order)
	assert.True(t, first.Applied)
	assert.Equal(t, "50.00", first.Amount)

	account := env.account(t, order.CustomerID)
	assert.Equal(t, "50.00", account.CurrentPoints)
	assert.Equal(t, "50.00", account.TotalEarned)
	assert.Equal(t, "50.00", account.LastPointsEarned)

	annotation := env.reloadAnnotation(t, order.ID)
	assert.True(t, annotation.Applied)
	assert.Equal(t, "50.00", annotation.Amount)
	assert.Equal(t, "5.00", annotation.Percent)

	second := env.apply(t, order)
	assert.False(t, second.Applied)
	assert.Equal(t, domain.ReasonAlreadyApplied, second.Reason)

	account = env.account(t, order.CustomerID)
	assert.Equal(t, "50.00", account.CurrentPoints)
	assert.EqualValues(t, 1, env.ledgerCount(t, order.ID))
}

func TestApplyRequiresCompletedPayment(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusPending)

	result := env.apply(t, order)
	assert.False(t, result.Applied)
	assert.Equal(t, domain.ReasonPaymentNotCompleted, result.Reason)
	assert.EqualValues(t, 0, env.ledgerCount(t, order.ID))
}

func TestApplyOrderNotFound(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())

	result, err := env.svc.ApplyCashbackForPaidOrder(env.ctx, domain.ApplyRequest{
		OrderID: env.node.Generate().String(),
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, domain.ReasonOrderNotFound, result.Reason)
}

func TestApplyUnconfiguredPercentNoops(t *testing.T) {
	env := newTestEnv(t, config.ProgramDefaults{
		Percent: "0.00",
		Base:    "total",
		Trigger: "payment_completed",
	})
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)

	result := env.apply(t, order)
	assert.False(t, result.Applied)
	assert.Equal(t, domain.ReasonPercentNotConfigured, result.Reason)

	// The lazily created program still exists with a zero rule-set.
	program, err := env.svc.EnsureProgram(env.ctx, "tester")
	require.NoError(t, err)
	assert.Equal(t, "0.00", program.Percent)
}

func TestApplyZeroTotalNoops(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "0.00", "0.00", orderdomain.PaymentStatusCompleted)

	result := env.apply(t, order)
	assert.False(t, result.Applied)
	assert.Equal(t, domain.ReasonCashbackZero, result.Reason)
}

func TestApplyUsesSubtotalBase(t *testing.T) {
	env := newTestEnv(t, config.ProgramDefaults{
		Percent: "5.00",
		Base:    "subtotal",
		Trigger: "payment_completed",
	})
	order := env.seedOrder(t, "100.00", "120.00", orderdomain.PaymentStatusCompleted)

	result := env.apply(t, order)
	assert.True(t, result.Applied)
	assert.Equal(t, "5.00", result.Amount)
}

func TestApplyInvalidInput(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())

	_, err := env.svc.ApplyCashbackForPaidOrder(env.ctx, domain.ApplyRequest{OrderID: "not-a-number"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = env.svc.ApplyCashbackForPaidOrder(context.Background(), domain.ApplyRequest{OrderID: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
}

func TestReverseProportionalOncePerReturn(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	request := env.seedReturn(t, order, "250.00", orderdomain.ReturnStatusApproved)

	first := env.reverse(t, request)
	assert.True(t, first.Reversed)
	assert.Equal(t, "12.50", first.Amount)
	assert.InDelta(t, 0.25, first.Ratio, 1e-9)

	account := env.account(t, order.CustomerID)
	assert.Equal(t, "37.50", account.CurrentPoints)
	assert.Equal(t, "37.50", account.TotalEarned)

	annotation := env.reloadAnnotation(t, order.ID)
	assert.Equal(t, "12.50", annotation.Reversals[request.ID.String()])

	second := env.reverse(t, request)
	assert.False(t, second.Reversed)
	assert.Equal(t, domain.ReasonAlreadyReversed, second.Reason)

	account = env.account(t, order.CustomerID)
	assert.Equal(t, "37.50", account.CurrentPoints)
	assert.EqualValues(t, 2, env.ledgerCount(t, order.ID))
}

func TestReverseFullRefundClearsCredit(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	request := env.seedReturn(t, order, "1000.00", orderdomain.ReturnStatusApproved)

	result := env.reverse(t, request)
	assert.True(t, result.Reversed)
	assert.Equal(t, "50.00", result.Amount)
	assert.InDelta(t, 1.0, result.Ratio, 1e-9)

	account := env.account(t, order.CustomerID)
	assert.Equal(t, "0.00", account.CurrentPoints)
	assert.Equal(t, "0.00", account.TotalEarned)
}

func TestReverseCumulativeReturnsNeverExceedApplied(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	first := env.seedReturn(t, order, "600.00", orderdomain.ReturnStatusApproved)
	second := env.seedReturn(t, order, "600.00", orderdomain.ReturnStatusApproved)

	firstResult := env.reverse(t, first)
	assert.True(t, firstResult.Reversed)
	assert.Equal(t, "30.00", firstResult.Amount)

	// 60% of 50.00 would be 30.00 again, but only 20.00 remains.
	secondResult := env.reverse(t, second)
	assert.True(t, secondResult.Reversed)
	assert.Equal(t, "20.00", secondResult.Amount)

	account := env.account(t, order.CustomerID)
	assert.Equal(t, "0.00", account.CurrentPoints)

	third := env.seedReturn(t, order, "100.00", orderdomain.ReturnStatusApproved)
	thirdResult := env.reverse(t, third)
	assert.False(t, thirdResult.Reversed)
	assert.Equal(t, domain.ReasonReversalExhausted, thirdResult.Reason)
}

func TestReverseRefundAboveTotalIsClamped(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	request := env.seedReturn(t, order, "2500.00", orderdomain.ReturnStatusApproved)

	result := env.reverse(t, request)
	assert.True(t, result.Reversed)
	assert.Equal(t, "50.00", result.Amount)
	assert.InDelta(t, 1.0, result.Ratio, 1e-9)
}

func TestReverseFloorsBalancesAtZero(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	// Simulate redemption having drained most of the balance.
	require.NoError(t, env.db.Model(&domain.LoyaltyAccount{}).
		Where("customer_id = ?", order.CustomerID).
		Update("current_points", "10.00").Error)

	request := env.seedReturn(t, order, "1000.00", orderdomain.ReturnStatusApproved)

	result := env.reverse(t, request)
	assert.True(t, result.Reversed)
	assert.Equal(t, "50.00", result.Amount)

	account := env.account(t, order.CustomerID)
	assert.Equal(t, "0.00", account.CurrentPoints)
	assert.Equal(t, "0.00", account.TotalEarned)
}

func TestReversePreconditions(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	t.Run("unknown return request", func(t *testing.T) {
		result, err := env.svc.ReverseCashbackForReturn(env.ctx, domain.ReverseRequest{
			ReturnRequestID: env.node.Generate().String(),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonReturnOrOrderNotFound, result.Reason)
	})

	t.Run("refund amount missing", func(t *testing.T) {
		request := env.seedReturn(t, order, "", orderdomain.ReturnStatusApproved)
		result := env.reverse(t, request)
		assert.Equal(t, domain.ReasonRefundAmountMissing, result.Reason)
	})

	t.Run("return not approved", func(t *testing.T) {
		request := env.seedReturn(t, order, "100.00", orderdomain.ReturnStatusPending)
		result := env.reverse(t, request)
		assert.Equal(t, domain.ReasonReturnNotApproved, result.Reason)
	})

	t.Run("zero refund", func(t *testing.T) {
		request := env.seedReturn(t, order, "0.00", orderdomain.ReturnStatusApproved)
		result := env.reverse(t, request)
		assert.Equal(t, domain.ReasonReverseZero, result.Reason)
	})
}

func TestReverseWithoutAppliedCashbackNoops(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	request := env.seedReturn(t, order, "250.00", orderdomain.ReturnStatusApproved)

	result := env.reverse(t, request)
	assert.False(t, result.Reversed)
	assert.Equal(t, domain.ReasonNoCashbackOnOrder, result.Reason)
}

func TestConcurrentApplyCreditsExactlyOnce(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)

	const workers = 8
	results := make([]domain.ApplyResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = env.svc.ApplyCashbackForPaidOrder(env.ctx, domain.ApplyRequest{
				OrderID:   order.ID.String(),
				ChangedBy: "tester",
			})
		}(i)
	}
	wg.Wait()

	appliedCount := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].Applied {
			appliedCount++
		}
	}
	assert.Equal(t, 1, appliedCount)

	account := env.account(t, order.CustomerID)
	assert.Equal(t, "50.00", account.CurrentPoints)
	assert.EqualValues(t, 1, env.ledgerCount(t, order.ID))
}

func TestEnsureProgramIsIdempotent(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())

	first, err := env.svc.EnsureProgram(env.ctx, "tester")
	require.NoError(t, err)
	assert.Equal(t, domain.ProgramTypeCashback, first.Type)
	assert.Equal(t, "5.00", first.Percent)
	assert.Equal(t, "total", first.Base)

	second, err := env.svc.EnsureProgram(env.ctx, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrderCashback(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())
	order := env.seedOrder(t, "1000.00", "1000.00", orderdomain.PaymentStatusCompleted)
	env.apply(t, order)

	request := env.seedReturn(t, order, "250.00", orderdomain.ReturnStatusApproved)
	env.reverse(t, request)

	resp, err := env.svc.GetOrderCashback(env.ctx, order.ID.String())
	require.NoError(t, err)
	assert.True(t, resp.Annotation.Applied)
	assert.Equal(t, "50.00", resp.Annotation.Amount)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, domain.EntryTypeEarn, resp.Entries[0].EntryType)
	assert.Equal(t, domain.EntryTypeReverse, resp.Entries[1].EntryType)
	assert.Equal(t, request.ID, resp.Entries[1].ReturnRequestID)

	_, err = env.svc.GetOrderCashback(env.ctx, env.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t, defaultTestProgram())

	for i := 0; i < 3; i++ {
		order := env.seedOrder(t, "100.00", "100.00", orderdomain.PaymentStatusCompleted)
		env.apply(t, order)
		env.clk.Advance(time.Second)
	}

	resp, err := env.svc.ListAccounts(env.ctx, domain.ListAccountsRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Accounts, 3)
	assert.False(t, resp.HasMore)

	for _, account := range resp.Accounts {
		assert.Equal(t, "5.00", account.CurrentPoints)
	}
}
