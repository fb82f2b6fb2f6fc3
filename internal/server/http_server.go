package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/transport/httpjsonrpc"
	"github.com/samiralibabic/mcpterm/internal/transport/wsjsonrpc"
)

// HTTPHandler routes the JSON-RPC POST path and the websocket path.
func (s *Service) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Server.HTTPPath, httpjsonrpc.Handler(s.Handle, s.log.Named("http")))
	mux.HandleFunc(s.cfg.Server.WSPath, wsjsonrpc.Handler(s.Handle, s.hub.Subscribe, s.log.Named("ws")))
	return mux
}

func RunHTTP(ctx context.Context, svc *Service) error {
	srv := &http.Server{
		Addr:              svc.cfg.Server.HTTPListen,
		Handler:           svc.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	svc.log.Info("listening", zap.String("addr", srv.Addr),
		zap.String("http_path", svc.cfg.Server.HTTPPath),
		zap.String("ws_path", svc.cfg.Server.WSPath),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve http")
	}
	return nil
}
