package server

import (
	"context"
	"net/http"
	"strconv"
)

// rateLimitContextKey is the context key for rate limit info
type rateLimitContextKey struct{}

// RateLimitInfo is the caller's window state, written as response headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   int64 // Unix seconds
}

// SetRateLimits stores rate limit info in context for the middleware to write as headers.
// The info is shared by pointer so a handler further down can fill it in.
func SetRateLimits(ctx context.Context, rl *RateLimitInfo) context.Context {
	return context.WithValue(ctx, rateLimitContextKey{}, rl)
}

// GetRateLimits retrieves rate limit info from context.
// Returns nil if no rate limits are set.
func GetRateLimits(ctx context.Context) *RateLimitInfo {
	if rl, ok := ctx.Value(rateLimitContextKey{}).(*RateLimitInfo); ok {
		return rl
	}
	return nil
}

// RateLimitHeadersMiddleware writes x-ratelimit-* headers on the first write
// of the response, from the info the handler recorded in context.
func RateLimitHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RateLimitInfo{}
		r = r.WithContext(SetRateLimits(r.Context(), info))
		next.ServeHTTP(&rateLimitResponseWriter{ResponseWriter: w, info: info}, r)
	})
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	info         *RateLimitInfo
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	rw.writeRateLimitHeaders()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	rw.writeRateLimitHeaders()
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	if rw.wroteHeaders {
		return
	}
	rw.wroteHeaders = true

	// a zero limit means no policy reported anything
	if rw.info.Limit <= 0 {
		return
	}
	h := rw.Header()
	h.Set("x-ratelimit-limit", strconv.Itoa(rw.info.Limit))
	h.Set("x-ratelimit-remaining", strconv.Itoa(rw.info.Remaining))
	if rw.info.ResetAt > 0 {
		h.Set("x-ratelimit-reset", strconv.FormatInt(rw.info.ResetAt, 10))
	}
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (rw *rateLimitResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
