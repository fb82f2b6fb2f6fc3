package server

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/events"
	"github.com/samiralibabic/mcpterm/internal/protocol"
	"github.com/samiralibabic/mcpterm/internal/transport/ndjson"
)

// RunStdio serves newline-delimited JSON-RPC on in and out until in is
// exhausted or ctx ends. Hub notifications share the encoder with responses.
func RunStdio(ctx context.Context, svc *Service, in io.Reader, out io.Writer) error {
	dec := ndjson.NewDecoder(in)
	enc := ndjson.NewEncoder(out)
	log := svc.log.With(zap.String("transport", "stdio"))

	notes, unsubscribe := svc.Hub().Subscribe()
	defer unsubscribe()
	go func() {
		for n := range notes {
			if err := enc.Encode(n); err != nil {
				log.Debug("write notification", zap.Error(err))
			}
		}
	}()
	_ = svc.Bus().PublishAPI(events.ConnectionEstablished{Transport: "stdio"})

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := dec.Next()
		switch {
		case errors.Is(err, io.EOF):
			_ = svc.Bus().PublishAPI(events.ConnectionLost{Reason: "eof"})
			return nil
		case errors.Is(err, ndjson.ErrLineTooLong):
			if err := enc.Encode(protocol.ErrorResponse(protocol.NullID, protocol.NewError(protocol.ParseError, err.Error()))); err != nil {
				return err
			}
			continue
		case err != nil:
			_ = svc.Bus().PublishAPI(events.ConnectionLost{Reason: err.Error()})
			return errors.Wrap(err, "read request")
		}

		req, perr := protocol.ParseRequest(line)
		if perr != nil {
			log.Debug("rejecting frame", zap.Int("code", int(perr.Code)))
			if err := enc.Encode(protocol.ErrorResponse(protocol.NullID, perr)); err != nil {
				return err
			}
			continue
		}
		resp := svc.Handle(ctx, req)
		if req.IsNotification() {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return errors.Wrap(err, "write response")
		}
	}
}
