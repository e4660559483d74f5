package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/logger"
)

const timeoutBody = `{"error":"request timeout"}`

// Timeout cancels the request context after d. When the handler has not
// started its response by then, the client gets 504 and any later writes
// from the handler are dropped.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
			}
			if !gw.expire() {
				return
			}
			logger.FromContext(r.Context()).Warn("request timed out",
				"method", r.Method, "path", r.URL.Path, "timeout", d)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGatewayTimeout)
			_, _ = w.Write([]byte(timeoutBody))
		})
	}
}

// guardedWriter arbitrates between the handler goroutine and the timeout
// path: whichever touches the response first owns it.
type guardedWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	started bool
	expired bool
}

// expire claims the response for the timeout path. It reports false when
// the handler already started writing.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return false
	}
	g.expired = true
	return true
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return
	}
	g.started = true
	g.ResponseWriter.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	g.started = true
	return g.ResponseWriter.Write(b)
}
