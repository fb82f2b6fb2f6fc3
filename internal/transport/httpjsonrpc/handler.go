package httpjsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/protocol"
)

const maxBodyBytes = 4 << 20

type RequestHandler func(context.Context, protocol.Request) protocol.Response

// Handler serves one JSON-RPC request per POST body. Protocol errors are
// reported in the body with status 200; notifications get 204.
func Handler(handle RequestHandler, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, log, protocol.ErrorResponse(protocol.NullID, protocol.NewError(protocol.ParseError, err.Error())))
			return
		}
		req, perr := protocol.ParseRequest(body)
		if perr != nil {
			writeJSON(w, log, protocol.ErrorResponse(protocol.NullID, perr))
			return
		}
		resp := handle(r.Context(), req)
		if req.IsNotification() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, log, resp)
	}
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, resp protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debug("write http response", zap.Error(err))
	}
}
