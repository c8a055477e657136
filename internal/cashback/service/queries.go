package service

import (
	"context"
	"time"

	"github.com/smallbiznis/rebata/internal/cashback/domain"
	"github.com/smallbiznis/rebata/internal/companyctx"
	"github.com/smallbiznis/rebata/pkg/db/pagination"
)

func (s *Service) ListAccounts(ctx context.Context, req domain.ListAccountsRequest) (domain.ListAccountsResponse, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return domain.ListAccountsResponse{}, domain.ErrInvalidCompany
	}

	filter := domain.ListAccountsFilter{}
	if req.CustomerID != "" {
		customerID, err := s.parseID(req.CustomerID)
		if err != nil {
			return domain.ListAccountsResponse{}, err
		}
		filter.CustomerID = customerID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListAccounts(ctx, s.db, companyID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListAccountsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(account *domain.LoyaltyAccount) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        account.ID.String(),
			CreatedAt: account.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	accounts := make([]domain.LoyaltyAccount, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		accounts = append(accounts, *item)
	}

	resp := domain.ListAccountsResponse{Accounts: accounts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetOrderCashback(ctx context.Context, orderID string) (domain.OrderCashbackResponse, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return domain.OrderCashbackResponse{}, domain.ErrInvalidCompany
	}
	id, err := s.parseID(orderID)
	if err != nil {
		return domain.OrderCashbackResponse{}, err
	}

	order, err := s.orderRepo.FindOrderByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.OrderCashbackResponse{}, err
	}
	if order == nil {
		return domain.OrderCashbackResponse{}, domain.ErrNotFound
	}

	entries, err := s.repo.ListLedgerEntriesByOrder(ctx, s.db, companyID, id)
	if err != nil {
		return domain.OrderCashbackResponse{}, err
	}

	return domain.OrderCashbackResponse{
		Annotation: domain.ParseAnnotation(order.Cashback),
		Entries:    entries,
	}, nil
}
