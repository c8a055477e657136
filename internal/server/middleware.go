package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rebata/internal/companyctx"
	"go.uber.org/zap"
)

const (
	HeaderCompany = "X-Company-ID"
	HeaderActor   = "X-Actor-ID"

	defaultActor = "system"
)

// CompanyContext resolves the tenant from the X-Company-ID header and
// injects it into the request context. Single-tenant deployments fall
// back to the bootstrap company configured via DEFAULT_COMPANY.
func (s *Server) CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderCompany))

		var companyID snowflake.ID
		if raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				AbortWithError(c, newValidationError("company_id", "invalid_company", "invalid company id"))
				return
			}
			companyID = snowflake.ID(parsed)
		} else if s.cfg.DefaultCompanyID != 0 {
			companyID = snowflake.ID(s.cfg.DefaultCompanyID)
		} else {
			AbortWithError(c, newValidationError("company_id", "invalid_company", "missing company id"))
			return
		}

		ctx := companyctx.WithCompanyID(c.Request.Context(), companyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// actor reports who triggered the request for audit trail purposes.
func (s *Server) actor(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(HeaderActor)); v != "" {
		return v
	}
	return defaultActor
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
