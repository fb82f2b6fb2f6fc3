package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/protocol"
)

// Handler produces the complete response for a request, error responses
// included.
type Handler func(ctx context.Context, req protocol.Request) protocol.Response

// Dispatcher routes requests to handlers by exact method name. Handlers are
// looked up under a read lock and invoked after it is released.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.Logger
}

func New(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		handlers: map[string]Handler{},
		log:      log,
	}
}

// Register installs h for method, replacing any previous handler.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// Deregister removes the handler for method and reports whether one existed.
func (d *Dispatcher) Deregister(method string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.handlers[method]
	delete(d.handlers, method)
	return ok
}

func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) lookup(method string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[method]
	return h, ok
}

// Process validates req and runs its handler. A response is always returned,
// including for notifications; transports decide whether to write it.
func (d *Dispatcher) Process(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	id := protocol.RequestID(req)
	if err := req.Validate(); err != nil {
		return protocol.ErrorResponse(id, err)
	}
	h, ok := d.lookup(req.Method)
	if !ok {
		d.log.Debug("method not found", zap.String("method", req.Method))
		return protocol.ErrorResponse(id, protocol.NewError(protocol.MethodNotFound, req.Method))
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked",
				zap.String("method", req.Method),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			resp = protocol.ErrorResponse(id, protocol.NewError(protocol.InternalError, fmt.Sprint(r)))
		}
	}()
	return h(ctx, req)
}

// ProcessJSON decodes data, processes it and encodes the response. The
// returned error is a *protocol.Error (ParseError, InvalidRequest or
// InternalError).
func (d *Dispatcher) ProcessJSON(ctx context.Context, data []byte) ([]byte, error) {
	req, perr := protocol.ParseRequest(data)
	if perr != nil {
		return nil, perr
	}
	resp := d.Process(ctx, req)
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, protocol.NewError(protocol.InternalError, err.Error())
	}
	return out, nil
}

// DecodeParams decodes request params into T, mapping failures to
// InvalidParams.
func DecodeParams[T any](req protocol.Request) (T, *protocol.Error) {
	var v T
	if len(req.Params) == 0 {
		return v, protocol.NewError(protocol.InvalidParams, "missing params")
	}
	if err := json.Unmarshal(req.Params, &v); err != nil {
		return v, protocol.NewError(protocol.InvalidParams, err.Error())
	}
	return v, nil
}
