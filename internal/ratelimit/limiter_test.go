package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int) (*Limiter, *database.Status) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	status := database.NewStatus()
	return New(rdb, status, "test_login:", limit, time.Minute), status
}

func TestAcquireSlidingWindow(t *testing.T) {
	l, _ := newLimiter(t, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := t.Context()

	for range 2 {
		comp, err := l.Acquire(ctx, "10.0.0.1")
		require.NoError(t, err)
		comp.Commit()
	}
	_, err := l.Acquire(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrRateLimited)

	// 其他IP不受影响
	_, err = l.Acquire(ctx, "10.0.0.2")
	assert.NoError(t, err)

	// 窗口滑过之后恢复
	now = now.Add(time.Minute + time.Second)
	_, err = l.Acquire(ctx, "10.0.0.1")
	assert.NoError(t, err)
}

func TestRollbackFreesSlot(t *testing.T) {
	l, _ := newLimiter(t, 1)
	ctx := t.Context()

	comp, err := l.Acquire(ctx, "10.0.0.1")
	require.NoError(t, err)
	comp.RollbackUnlessCommitted()

	comp, err = l.Acquire(ctx, "10.0.0.1")
	require.NoError(t, err)
	comp.Commit()
	comp.RollbackUnlessCommitted()

	_, err = l.Acquire(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
}

func TestAcquireRejectsBadInput(t *testing.T) {
	l, status := newLimiter(t, 1)
	_, err := l.Acquire(t.Context(), "not-an-ip")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	status.Update(false, "")
	_, err = l.Acquire(t.Context(), "10.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestMiddlewareSkipsServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newLimiter(t, 1)
	fail := true
	r := gin.New()
	r.POST("/login", Middleware(l), func(c *gin.Context) {
		if fail {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusUnauthorized)
	})

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusInternalServerError, do())
	fail = false
	assert.Equal(t, http.StatusUnauthorized, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
