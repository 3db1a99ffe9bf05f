package middleware

import (
	"context"
	"net/http"
	"strconv"

	"tutor-match/internal/redis"
	"tutor-match/internal/services"
	"tutor-match/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Limiter is the slice of redis.RateLimiter the middleware needs.
type Limiter interface {
	AllowSwipe(ctx context.Context, userID uuid.UUID) (*redis.RateLimitResult, error)
	AllowMessage(ctx context.Context, userID uuid.UUID) (*redis.RateLimitResult, error)
}

// SwipeRateLimitMiddleware limits swipes per user
// Should be applied to swipe endpoints after auth middleware
func SwipeRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return rateLimit(limiter.AllowSwipe, "swipe rate limit exceeded")
}

// MessageRateLimitMiddleware limits message sends per user
// Should be applied to message endpoints after auth middleware
func MessageRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return rateLimit(limiter.AllowMessage, "message rate limit exceeded")
}

func rateLimit(allow func(context.Context, uuid.UUID) (*redis.RateLimitResult, error), exceeded string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			// No user context, auth middleware answers
			c.Next()
			return
		}

		result, err := allow(c.Request.Context(), userID)
		if err != nil {
			// Fail open: redis trouble should not block chatting
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(exceeded, "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
