package models

import "context"

type callerContextKey struct{}

// Caller carries the authenticated identity through context so the ledger
// and transaction log can attribute operations without widening their
// interfaces.
type Caller struct {
	UserId string
	Email  string
}

// WithCaller attaches the authenticated caller to a context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext retrieves the authenticated caller, or nil if absent.
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerContextKey{}).(*Caller)
	return caller
}
