package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Hook observes statements passing through the proxy.
type Hook interface {
	BeforeQuery(ctx context.Context, event *QueryEvent) context.Context
	AfterQuery(ctx context.Context, event *QueryEvent)
}

// hookRunner calls hooks in order before a statement and in reverse order
// after it. A panicking hook is skipped for that call and reported once.
type hookRunner struct {
	hooks    []Hook
	reported []atomic.Bool
	logger   *slog.Logger
}

func newHookRunner(hooks []Hook, logger *slog.Logger) *hookRunner {
	return &hookRunner{
		hooks:    hooks,
		reported: make([]atomic.Bool, len(hooks)),
		logger:   logger,
	}
}

func (r *hookRunner) before(ctx context.Context, event *QueryEvent) context.Context {
	for i, h := range r.hooks {
		ctx = r.callBefore(i, h, ctx, event)
	}
	return ctx
}

func (r *hookRunner) after(ctx context.Context, event *QueryEvent) {
	for i := len(r.hooks) - 1; i >= 0; i-- {
		r.callAfter(i, r.hooks[i], ctx, event)
	}
}

func (r *hookRunner) callBefore(i int, h Hook, ctx context.Context, event *QueryEvent) (out context.Context) {
	out = ctx
	defer func() {
		if p := recover(); p != nil {
			r.report(i, h, "BeforeQuery", p)
			out = ctx
		}
	}()
	if next := h.BeforeQuery(ctx, event); next != nil {
		out = next
	}
	return out
}

func (r *hookRunner) callAfter(i int, h Hook, ctx context.Context, event *QueryEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.report(i, h, "AfterQuery", p)
		}
	}()
	h.AfterQuery(ctx, event)
}

func (r *hookRunner) report(i int, h Hook, phase string, p any) {
	if !r.reported[i].CompareAndSwap(false, true) {
		return
	}
	r.logger.Error("proxy: query hook panicked",
		slog.String("hook", fmt.Sprintf("%T", h)),
		slog.String("phase", phase),
		slog.Any("panic", p),
	)
}
