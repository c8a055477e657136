package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cashbackdomain "github.com/smallbiznis/rebata/internal/cashback/domain"
	"github.com/smallbiznis/rebata/pkg/db/pagination"
)

type listLoyaltyAccountsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	CustomerID string `form:"customer_id"`
}

func (s *Server) ListLoyaltyAccounts(c *gin.Context) {
	var query listLoyaltyAccountsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.cashbackSvc.ListAccounts(c.Request.Context(), cashbackdomain.ListAccountsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		CustomerID: strings.TrimSpace(query.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
