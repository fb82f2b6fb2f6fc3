package tools

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/samiralibabic/mcpterm/internal/dispatch"
	"github.com/samiralibabic/mcpterm/internal/protocol"
)

// RegisterMethods installs tools.list and tools.execute on d.
func RegisterMethods(d *dispatch.Dispatcher, c *Coordinator) {
	d.Register(protocol.MethodToolsList, func(_ context.Context, req protocol.Request) protocol.Response {
		return protocol.Result(protocol.RequestID(req), c.Registry().List())
	})
	d.Register(protocol.MethodToolsExecute, func(ctx context.Context, req protocol.Request) protocol.Response {
		id := protocol.RequestID(req)
		p, err := decodeExecuteParams(req.Params)
		if err != nil {
			return protocol.ErrorResponse(id, protocol.NewError(protocol.InvalidParams, err.Error()))
		}
		res, err := c.Invoke(ctx, p.ToolID, p.Params)
		if err != nil {
			if isTimeout(err) {
				return protocol.Result(id, resultFromError(p.ToolID, err))
			}
			return protocol.ErrorResponse(id, protocol.Errorf(protocol.ToolFailure, "Tool execution failed: %s", err))
		}
		return protocol.Result(id, res)
	})
}

func decodeExecuteParams(raw json.RawMessage) (protocol.ToolsExecuteParams, error) {
	var p protocol.ToolsExecuteParams
	if len(raw) == 0 {
		return p, errors.New("missing params")
	}
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tool_id":
			s, err := d.Str()
			p.ToolID = s
			return err
		case "params":
			r, err := d.Raw()
			p.Params = append(json.RawMessage(nil), r...)
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return p, errors.Wrap(err, "decode tools.execute params")
	}
	if p.ToolID == "" {
		return p, errors.New("tool_id is required")
	}
	if len(p.Params) == 0 || string(p.Params) == "null" {
		p.Params = json.RawMessage("{}")
	}
	return p, nil
}
