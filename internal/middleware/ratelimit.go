package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"evolv/internal/models"
)

// SubmitLimiter hands out one token bucket per caller.
type SubmitLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewSubmitLimiter allows perMinute requests per caller with the given burst.
// A non-positive perMinute disables limiting.
func NewSubmitLimiter(perMinute, burst int) *SubmitLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &SubmitLimiter{
		limit:   limit,
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *SubmitLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Allow reports whether key may make a request at t.
func (l *SubmitLimiter) Allow(key string, t time.Time) bool {
	return l.bucket(key).AllowN(t, 1)
}

// Middleware limits by authenticated user, falling back to client IP.
func (l *SubmitLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(UserIDKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key, time.Now()) {
			logrus.WithField("caller", key).Warn("Submission rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "too many evolution requests, try again shortly",
			})
			return
		}
		c.Next()
	}
}
