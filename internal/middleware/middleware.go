// Package middleware holds the HTTP layers every form request passes
// through before it reaches a pipeline: panic recovery, metrics, request
// and client identification, access logging and the optional API guard.
package middleware

import (
	"context"
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

type ctxKey int

const (
	requestIDKey ctxKey = iota
	clientIPKey
)

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithClientIP returns a copy of ctx carrying the client identifier the
// form limiters key on.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client identifier set by ClientIP. It is ""
// when that middleware did not run; handlers then fall back to
// UnknownClient.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// Chain is an ordered list of middlewares. The first one listed sees the
// request first. A Chain is never modified after creation, so the server
// can derive the /api chain from a shared base.
type Chain struct {
	layers []Middleware
}

// New creates a Chain.
func New(layers ...Middleware) Chain {
	return Chain{layers: append([]Middleware(nil), layers...)}
}

// Append returns a new Chain with layers added innermost.
func (c Chain) Append(layers ...Middleware) Chain {
	all := make([]Middleware, 0, len(c.layers)+len(layers))
	all = append(all, c.layers...)
	return Chain{layers: append(all, layers...)}
}

// Then wraps h. A nil h answers 404, so a missing route never falls
// through to http.DefaultServeMux.
func (c Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(c.layers) - 1; i >= 0; i-- {
		h = c.layers[i](h)
	}
	return h
}

// ThenFunc wraps fn.
func (c Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return c.Then(nil)
	}
	return c.Then(fn)
}
