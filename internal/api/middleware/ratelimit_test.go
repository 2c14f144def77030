package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimiter_Throttles(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter("login", 2, time.Hour)
	h := l.Handler(okHandler)

	for i := 0; i < 2; i++ {
		apitest.Handler(h).Post("/login").Expect(t).Status(http.StatusOK).End()
	}

	apitest.Handler(h).
		Post("/login").
		Expect(t).
		Status(http.StatusTooManyRequests).
		HeaderPresent("Retry-After").
		Assert(jsonpath.Equal("$.message", "Too many requests, please try again later.")).
		End()

	assert.Equal(t, 1, l.Len())
}

func TestRateLimiter_PerClient(t *testing.T) {
	t.Parallel()

	h := NewRateLimiter("register", 1, time.Hour).Handler(okHandler)

	setAddr := func(addr string) apitest.Intercept {
		return func(r *http.Request) {
			r.RemoteAddr = addr
		}
	}

	apitest.Handler(h).Intercept(setAddr("198.51.100.1:1000")).Post("/users").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(h).Intercept(setAddr("198.51.100.1:2000")).Post("/users").Expect(t).Status(http.StatusTooManyRequests).End()
	apitest.Handler(h).Intercept(setAddr("198.51.100.2:1000")).Post("/users").Expect(t).Status(http.StatusOK).End()
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter("global", 0, time.Hour)
	assert.False(t, l.Enabled())

	h := l.Handler(okHandler)
	for i := 0; i < 5; i++ {
		apitest.Handler(h).Get("/").Expect(t).Status(http.StatusOK).End()
	}
	assert.Zero(t, l.Len())
}

func TestRateLimiter_Prune(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter("global", 10, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.allow("192.0.2.1")
	l.now = func() time.Time { return now.Add(10 * time.Minute) }
	l.allow("192.0.2.2")

	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}
