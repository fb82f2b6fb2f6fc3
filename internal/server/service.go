package server

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/audit"
	"github.com/samiralibabic/mcpterm/internal/config"
	"github.com/samiralibabic/mcpterm/internal/dispatch"
	"github.com/samiralibabic/mcpterm/internal/events"
	execsvc "github.com/samiralibabic/mcpterm/internal/exec"
	fssvc "github.com/samiralibabic/mcpterm/internal/fs"
	"github.com/samiralibabic/mcpterm/internal/llm"
	"github.com/samiralibabic/mcpterm/internal/metrics"
	"github.com/samiralibabic/mcpterm/internal/policy"
	"github.com/samiralibabic/mcpterm/internal/protocol"
	"github.com/samiralibabic/mcpterm/internal/resources"
	"github.com/samiralibabic/mcpterm/internal/session"
	"github.com/samiralibabic/mcpterm/internal/tools"
)

const ServerVersion = "0.1.0"

// MethodProcessOutput is pushed for every chunk a shell command writes.
const MethodProcessOutput = "process.output"

type processOutput struct {
	ProcessID string `json:"process_id"`
	Stream    string `json:"stream"`
	Data      string `json:"data"`
}

// Service owns every component and the wiring between them.
type Service struct {
	cfg        config.Config
	log        *zap.Logger
	policy     *policy.Engine
	procs      *execsvc.Manager
	fs         *fssvc.Service
	registry   *tools.Registry
	coord      *tools.Coordinator
	dispatcher *dispatch.Dispatcher
	resources  *resources.Manager
	bus        *events.Bus
	hub        *events.Hub
	session    *session.Manager
	audit      *audit.Logger
}

// NewService builds the service. A nil client falls back to a scripted client
// with no turns.
func NewService(cfg config.Config, client llm.Client, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	roots := config.AllowedRoots(cfg)
	if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		log.Info("no allowed roots configured, using working directory", zap.String("root", wd))
		roots = []string{wd}
	}
	pol, err := policy.New(roots, cfg.Security.AllowShell, cfg.Security.DeniedCommands)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = llm.NewScriptedClient()
	}

	s := &Service{
		cfg:        cfg,
		log:        log,
		policy:     pol,
		procs:      execsvc.NewManager(),
		dispatcher: dispatch.New(log),
		resources:  resources.NewManager(),
		bus:        events.NewBus(log),
		hub:        events.NewHub(cfg.Events.HubBuffer),
		audit:      audit.New(cfg.Audit.Enabled, cfg.Audit.Path, log),
	}
	workDir := pol.AllowedRoots()[0]

	shell := execsvc.NewShellTool(pol, s.procs, execsvc.ShellOptions{
		WorkDir:        workDir,
		DefaultTimeout: cfg.Limits.DefaultTimeout(),
		HardTimeout:    cfg.Limits.HardTimeout(),
		MaxOutputBytes: int64(cfg.Limits.MaxOutputBytes),
		OnOutput:       s.publishOutput,
	}, log)
	s.fs = fssvc.NewService(pol, workDir, int64(cfg.Limits.MaxFileReadBytes), cfg.Limits.LockTimeout(), cfg.Limits.LockDir)
	s.registry = tools.NewRegistry(append([]tools.Tool{shell}, s.fs.Tools()...)...)

	opts := []tools.Option{
		tools.WithLogger(log),
		tools.WithAudit(s.audit),
		tools.WithTracer(otel.Tracer(metrics.ScopeName)),
		tools.WithDefaultTimeout(cfg.Limits.DefaultTimeout()),
	}
	if m, err := metrics.Default(); err != nil {
		log.Warn("tool metrics disabled", zap.Error(err))
	} else {
		opts = append(opts, tools.WithMetrics(m))
	}
	s.coord = tools.NewCoordinator(s.registry, opts...)

	prompt := strings.TrimSpace(cfg.Session.SystemPrompt + "\n\n" + s.registry.Documentation())
	s.session = session.NewManager(session.New(prompt), s.bus, client, s.coord, s.resources, session.Options{
		Streaming:    cfg.Session.Streaming,
		MaxFollowUps: cfg.Session.MaxFollowUps,
		ToolTimeout:  cfg.Limits.DefaultTimeout(),
	}, log)
	s.session.Register()

	tools.RegisterMethods(s.dispatcher, s.coord)
	resources.RegisterMethods(s.dispatcher, s.resources)
	session.RegisterMethods(s.dispatcher, s.session)

	s.bus.RegisterModelHandler(func(_ context.Context, ev events.ModelEvent) error {
		s.hub.Publish(ev.Name(), ev)
		return nil
	})
	s.bus.RegisterAPIHandler(func(_ context.Context, ev events.APIEvent) error {
		s.hub.Publish(ev.Name(), ev)
		return nil
	})
	return s, nil
}

func (s *Service) publishOutput(processID, stream string, data []byte) {
	s.hub.Publish(MethodProcessOutput, processOutput{ProcessID: processID, Stream: stream, Data: string(data)})
}

func (s *Service) Config() config.Config            { return s.cfg }
func (s *Service) Bus() *events.Bus                 { return s.bus }
func (s *Service) Hub() *events.Hub                 { return s.hub }
func (s *Service) Session() *session.Manager        { return s.session }
func (s *Service) Registry() *tools.Registry        { return s.registry }
func (s *Service) Coordinator() *tools.Coordinator  { return s.coord }
func (s *Service) Resources() *resources.Manager    { return s.resources }
func (s *Service) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Start begins event distribution. It is safe to call more than once.
func (s *Service) Start(ctx context.Context) {
	s.bus.StartEventDistribution(ctx)
}

func (s *Service) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	return s.dispatcher.Process(ctx, req)
}

// Close kills running commands and stops the bus.
func (s *Service) Close() {
	s.procs.KillAll()
	s.bus.Close()
}
