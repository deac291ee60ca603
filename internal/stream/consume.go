// Package streamengine drives the consume loop shared by every streaming
// adapter: it pumps normalized upstream lines to a per-surface hook while
// enforcing keep-alive, idle, and cancellation policy in one place.
package streamengine

import (
	"context"
	"io"
	"time"

	"ds2api/internal/sse"
)

// StopReason tells the finalize hook why the loop ended. Surfaces may also
// pass their own reasons through ParsedDecision.
type StopReason string

const (
	StopReasonCompleted          StopReason = "completed"
	StopReasonHandlerRequested   StopReason = "handler_requested"
	StopReasonIdleTimeout        StopReason = "idle_timeout"
	StopReasonKeepAliveExhausted StopReason = "keepalive_exhausted"
	StopReasonCanceled           StopReason = "canceled"
)

// ParsedDecision is the hook's verdict on one parsed line. ContentSeen resets
// the no-input keep-alive budget.
type ParsedDecision struct {
	Stop        bool
	StopReason  StopReason
	ContentSeen bool
}

type ConsumeConfig struct {
	Context         context.Context
	Body            io.Reader
	ThinkingEnabled bool
	InitialType     string

	// KeepAliveInterval <= 0 disables keep-alives; IdleTimeout <= 0 disables
	// the idle watchdog.
	KeepAliveInterval   time.Duration
	IdleTimeout         time.Duration
	MaxKeepAliveNoInput int
}

type ConsumeHooks struct {
	OnKeepAlive func()
	OnParsed    func(sse.LineResult) ParsedDecision
	OnFinalize  func(StopReason, error)
}

// ConsumeSSE runs the loop until the upstream ends, the hook requests a stop,
// or a policy limit trips. OnFinalize is called exactly once. The caller
// keeps ownership of cfg.Body; closing it unblocks the reader goroutine.
func ConsumeSSE(cfg ConsumeConfig, hooks ConsumeHooks) {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	finalize := func(reason StopReason, err error) {
		if hooks.OnFinalize != nil {
			hooks.OnFinalize(reason, err)
		}
	}

	lines, _ := sse.StartParsedLinePump(ctx, cfg.Body, cfg.ThinkingEnabled, cfg.InitialType)

	var keepAliveCh <-chan time.Time
	if cfg.KeepAliveInterval > 0 {
		ticker := time.NewTicker(cfg.KeepAliveInterval)
		defer ticker.Stop()
		keepAliveCh = ticker.C
	}

	var idleTimer *time.Timer
	var idleCh <-chan time.Time
	if cfg.IdleTimeout > 0 {
		idleTimer = time.NewTimer(cfg.IdleTimeout)
		defer idleTimer.Stop()
		idleCh = idleTimer.C
	}
	resetIdle := func() {
		if idleTimer == nil {
			return
		}
		if !idleTimer.Stop() {
			select {
			case <-idleTimer.C:
			default:
			}
		}
		idleTimer.Reset(cfg.IdleTimeout)
	}

	keepAlivesSinceInput := 0
	for {
		select {
		case <-ctx.Done():
			finalize(StopReasonCanceled, ctx.Err())
			return
		case <-idleCh:
			finalize(StopReasonIdleTimeout, nil)
			return
		case <-keepAliveCh:
			keepAlivesSinceInput++
			if cfg.MaxKeepAliveNoInput > 0 && keepAlivesSinceInput > cfg.MaxKeepAliveNoInput {
				finalize(StopReasonKeepAliveExhausted, nil)
				return
			}
			if hooks.OnKeepAlive != nil {
				hooks.OnKeepAlive()
			}
		case parsed, ok := <-lines:
			if !ok {
				finalize(StopReasonCompleted, nil)
				return
			}
			resetIdle()
			var decision ParsedDecision
			if hooks.OnParsed != nil {
				decision = hooks.OnParsed(parsed)
			}
			if decision.ContentSeen {
				keepAlivesSinceInput = 0
			}
			if decision.Stop {
				reason := decision.StopReason
				if reason == "" {
					reason = StopReasonHandlerRequested
				}
				finalize(reason, nil)
				return
			}
		}
	}
}
