package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/audit"
	"github.com/samiralibabic/mcpterm/internal/metrics"
)

// Coordinator executes tools from a shared registry and suppresses repeated
// (tool, params) pairs within a turn.
type Coordinator struct {
	registry       *Registry
	log            *zap.Logger
	audit          *audit.Logger
	metrics        *metrics.Tools
	tracer         trace.Tracer
	defaultTimeout time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
}

type Option func(*Coordinator)

func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func WithAudit(a *audit.Logger) Option {
	return func(c *Coordinator) { c.audit = a }
}

func WithMetrics(m *metrics.Tools) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// WithDefaultTimeout bounds invocations whose context carries no deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.defaultTimeout = d }
}

func NewCoordinator(registry *Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		seen:     map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(metrics.ScopeName)
	}
	return c
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// ShouldExecute records the fingerprint of (toolID, params) and reports
// whether it was new in the current turn.
func (c *Coordinator) ShouldExecute(toolID string, params json.RawMessage) bool {
	fp := Fingerprint(toolID, params)
	c.mu.Lock()
	_, dup := c.seen[fp]
	if !dup {
		c.seen[fp] = struct{}{}
	}
	c.mu.Unlock()
	if dup {
		c.log.Info("duplicate tool call suppressed",
			zap.String("tool_id", toolID),
			zap.String("fingerprint", fp),
		)
		c.metrics.Suppressed(context.Background(), toolID)
	}
	return !dup
}

// Clear forgets every fingerprint. Call it when a new turn starts.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.seen)
}

func (c *Coordinator) Seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Execute runs the tool and always returns a result. Errors become Failure
// results and deadlines become Timeout results.
func (c *Coordinator) Execute(ctx context.Context, toolID string, params json.RawMessage) Result {
	res, err := c.Invoke(ctx, toolID, params)
	if err != nil {
		return resultFromError(toolID, err)
	}
	return res
}

// Invoke runs the tool and returns its raw error alongside the result. An
// unknown tool is reported as a Failure result, not an error.
//
// The tool runs on its own goroutine with a context that keeps ctx's deadline
// but ignores its cancellation: a started tool is never preempted. When the
// deadline passes first, Invoke returns ErrTimeout and leaves the tool to
// finish on its own.
func (c *Coordinator) Invoke(ctx context.Context, toolID string, params json.RawMessage) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "tools.execute", trace.WithAttributes(attribute.String("tool.id", toolID)))
	defer span.End()
	start := time.Now()

	res, err := c.invoke(ctx, toolID, params)

	final := res
	if err != nil {
		final = resultFromError(toolID, err)
	}
	elapsed := time.Since(start)
	c.metrics.Executed(ctx, toolID, string(final.Status), elapsed)
	sessionID, requestID := audit.ScopeFrom(ctx)
	c.audit.Write(audit.Entry{
		SessionID:   sessionID,
		RequestID:   requestID,
		ToolID:      toolID,
		Fingerprint: Fingerprint(toolID, params),
		Status:      string(final.Status),
		Error:       final.Error,
		DurationMs:  elapsed.Milliseconds(),
		Params:      params,
	})
	if final.Status != StatusSuccess {
		span.SetStatus(codes.Error, final.Error)
		if err != nil {
			span.RecordError(err)
		}
	}
	c.log.Debug("tool executed",
		zap.String("tool_id", toolID),
		zap.String("status", string(final.Status)),
		zap.Duration("elapsed", elapsed),
		zap.String("error", final.Error),
	)
	return res, err
}

func (c *Coordinator) invoke(ctx context.Context, toolID string, params json.RawMessage) (Result, error) {
	tool, ok := c.registry.Get(toolID)
	if !ok {
		return Failure(toolID, fmt.Sprintf("Tool '%s' not found", toolID)), nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(err, "tool not started")
	}
	if err := ValidateParams(tool.Metadata().InputSchema, params); err != nil {
		return Result{}, errors.Wrap(err, "invalid params")
	}

	runCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
	} else if c.defaultTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, c.defaultTimeout)
	}
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("tool panicked", zap.String("tool_id", toolID), zap.Any("panic", r), zap.Stack("stack"))
				done <- outcome{err: errors.Errorf("tool '%s' panicked: %v", toolID, r)}
			}
		}()
		res, err := tool.Execute(runCtx, params)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Result{}, o.err
		}
		return normalize(toolID, o.res), nil
	case <-runCtx.Done():
		return Result{}, errors.Wrapf(ErrTimeout, "tool '%s' exceeded its deadline", toolID)
	}
}

func normalize(toolID string, res Result) Result {
	if res.ToolID == "" {
		res.ToolID = toolID
	}
	if res.Status == "" {
		res.Status = StatusSuccess
	}
	if len(res.Output) == 0 {
		res.Output = json.RawMessage("null")
	}
	if res.Status != StatusSuccess && res.Error == "" {
		res.Error = fmt.Sprintf("tool '%s' finished with status %s", res.ToolID, res.Status)
	}
	return res
}
