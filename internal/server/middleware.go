package server

import (
	"strings"

	obscontext "github.com/amourlabs/amour/internal/observability/context"
	obslogger "github.com/amourlabs/amour/internal/observability/logger"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerAccountID = "X-Account-Id"
	headerAdminID   = "X-Admin-Id"

	ctxKeyAccountID = "account_id"
	ctxKeyAdminID   = "admin_id"
)

// AccountRequired resolves the calling account from the gateway header.
// The edge proxy authenticates the session and forwards the account id.
func (s *Server) AccountRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerAccountID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		accountID, err := snowflake.ParseString(raw)
		if err != nil || accountID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(ctxKeyAccountID, accountID)
		ctx := obscontext.WithActor(c.Request.Context(), "account", accountID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired resolves the operator identity for back-office routes.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerAdminID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(ctxKeyAdminID, raw)
		ctx := obscontext.WithActor(c.Request.Context(), "admin", raw)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// PaymentVerifyRateLimit throttles verification per account and across
// the endpoint. The limiter backend failing falls open.
func (s *Server) PaymentVerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.verifyLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		accountID := accountIDFromContext(c)

		endpointRes, err := s.verifyLimiter.AllowEndpoint(ctx)
		if err != nil {
			obslogger.FromContext(ctx).Warn("endpoint rate limit check failed", zap.Error(err))
		} else if !endpointRes.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, "payments.verify", "endpoint")
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		accountRes, err := s.verifyLimiter.AllowAccount(ctx, accountID.String())
		if err != nil {
			obslogger.FromContext(ctx).Warn("account rate limit check failed", zap.Error(err))
		} else if !accountRes.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, "payments.verify", "account")
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, "payments.verify")
		c.Next()
	}
}

func accountIDFromContext(c *gin.Context) snowflake.ID {
	value, ok := c.Get(ctxKeyAccountID)
	if !ok {
		return 0
	}
	accountID, ok := value.(snowflake.ID)
	if !ok {
		return 0
	}
	return accountID
}

func adminIDFromContext(c *gin.Context) string {
	value, ok := c.Get(ctxKeyAdminID)
	if !ok {
		return ""
	}
	adminID, ok := value.(string)
	if !ok {
		return ""
	}
	return adminID
}
