package resources

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/samiralibabic/mcpterm/internal/dispatch"
	"github.com/samiralibabic/mcpterm/internal/protocol"
)

func RegisterMethods(d *dispatch.Dispatcher, m *Manager) {
	d.Register(protocol.MethodResourcesList, func(_ context.Context, req protocol.Request) protocol.Response {
		return protocol.Result(protocol.RequestID(req), m.List())
	})
	d.Register(protocol.MethodResourcesRead, func(_ context.Context, req protocol.Request) protocol.Response {
		id := protocol.RequestID(req)
		p, perr := dispatch.DecodeParams[protocol.ResourceReadParams](req)
		if perr != nil {
			return protocol.ErrorResponse(id, perr)
		}
		if p.URI == "" {
			return protocol.ErrorResponse(id, protocol.NewError(protocol.InvalidParams, "uri is required"))
		}
		data, err := m.Read(p.URI)
		if err != nil {
			return protocol.ErrorResponse(id, errorFor(err))
		}
		info, err := m.Stat(p.URI)
		if err != nil {
			return protocol.ErrorResponse(id, errorFor(err))
		}
		return protocol.Result(id, protocol.ResourceReadResult{
			URI:     p.URI,
			Mode:    string(info.Mode),
			Size:    len(data),
			Content: string(data),
		})
	})
}

func errorFor(err error) *protocol.Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return protocol.NewError(protocol.ResourceNotFound, err.Error())
	case errors.Is(err, ErrAccessDenied):
		return protocol.NewError(protocol.ResourceAccessDenied, err.Error())
	default:
		return protocol.NewError(protocol.InternalError, err.Error())
	}
}
