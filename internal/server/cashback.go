package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cashbackdomain "github.com/smallbiznis/rebata/internal/cashback/domain"
)

// ApplyCashback credits cashback for a payment-completed order. Safe to
// call more than once per order; repeats report applied=false with a
// reason instead of double crediting.
func (s *Server) ApplyCashback(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "invalid_id", "invalid order id"))
		return
	}

	result, err := s.cashbackSvc.ApplyCashbackForPaidOrder(c.Request.Context(), cashbackdomain.ApplyRequest{
		OrderID:   orderID,
		ChangedBy: s.actor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReverseCashback claws back the proportional slice of an order's
// cashback for an approved return request, once per return.
func (s *Server) ReverseCashback(c *gin.Context) {
	returnRequestID := strings.TrimSpace(c.Param("return_request_id"))
	if returnRequestID == "" {
		AbortWithError(c, newValidationError("return_request_id", "invalid_id", "invalid return request id"))
		return
	}

	result, err := s.cashbackSvc.ReverseCashbackForReturn(c.Request.Context(), cashbackdomain.ReverseRequest{
		ReturnRequestID: returnRequestID,
		ChangedBy:       s.actor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetOrderCashback(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "invalid_id", "invalid order id"))
		return
	}

	resp, err := s.cashbackSvc.GetOrderCashback(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCashbackProgram(c *gin.Context) {
	program, err := s.cashbackSvc.EnsureProgram(c.Request.Context(), s.actor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}
