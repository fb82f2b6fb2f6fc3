package session

import (
	"context"
	"strings"

	"github.com/samiralibabic/mcpterm/internal/dispatch"
	"github.com/samiralibabic/mcpterm/internal/events"
	"github.com/samiralibabic/mcpterm/internal/protocol"
)

type cancelResult struct {
	Cancelled []string `json:"cancelled"`
}

type clearResult struct {
	Cleared bool `json:"cleared"`
}

// RegisterMethods exposes the session over JSON-RPC. session.send is
// asynchronous: progress arrives as model notifications.
func RegisterMethods(d *dispatch.Dispatcher, m *Manager) {
	d.Register(protocol.MethodSessionSend, func(_ context.Context, req protocol.Request) protocol.Response {
		id := protocol.RequestID(req)
		p, perr := dispatch.DecodeParams[protocol.SessionSendParams](req)
		if perr != nil {
			return protocol.ErrorResponse(id, perr)
		}
		if strings.TrimSpace(p.Text) == "" {
			return protocol.ErrorResponse(id, protocol.NewError(protocol.InvalidParams, "text is required"))
		}
		if err := m.bus.PublishUI(events.UserInput{Text: p.Text}); err != nil {
			return protocol.ErrorResponse(id, protocol.NewError(protocol.InternalError, err.Error()))
		}
		return protocol.Result(id, protocol.SessionSendResult{SessionID: m.session.ID(), Accepted: true})
	})
	d.Register(protocol.MethodSessionCancel, func(_ context.Context, req protocol.Request) protocol.Response {
		id := protocol.RequestID(req)
		var p protocol.SessionCancelParams
		if len(req.Params) > 0 {
			var perr *protocol.Error
			if p, perr = dispatch.DecodeParams[protocol.SessionCancelParams](req); perr != nil {
				return protocol.ErrorResponse(id, perr)
			}
		}
		ids := m.Cancel(p.RequestID)
		if ids == nil {
			ids = []string{}
		}
		return protocol.Result(id, cancelResult{Cancelled: ids})
	})
	d.Register(protocol.MethodSessionClear, func(_ context.Context, req protocol.Request) protocol.Response {
		m.Reset()
		return protocol.Result(protocol.RequestID(req), clearResult{Cleared: true})
	})
	d.Register(protocol.MethodSessionHistory, func(_ context.Context, req protocol.Request) protocol.Response {
		msgs := m.session.Messages()
		out := protocol.SessionHistoryResult{
			SessionID:    m.session.ID(),
			SystemPrompt: m.session.SystemPrompt(),
			Messages:     make([]protocol.HistoryMessage, 0, len(msgs)),
		}
		for _, msg := range msgs {
			out.Messages = append(out.Messages, protocol.HistoryMessage{Role: string(msg.Role), Content: msg.Content})
		}
		return protocol.Result(protocol.RequestID(req), out)
	})
}
