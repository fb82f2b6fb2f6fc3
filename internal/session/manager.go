package session

import (
	"context"
	"encoding/json"
	"fmt"
	mathrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/audit"
	"github.com/samiralibabic/mcpterm/internal/events"
	"github.com/samiralibabic/mcpterm/internal/extract"
	"github.com/samiralibabic/mcpterm/internal/llm"
	"github.com/samiralibabic/mcpterm/internal/resources"
	"github.com/samiralibabic/mcpterm/internal/tools"
)

const TranscriptName = "transcript"

type Options struct {
	// Streaming selects StreamMessage over SendMessage.
	Streaming bool
	// MaxFollowUps bounds the model turns triggered by tool results after one
	// user message.
	MaxFollowUps int
	ToolTimeout  time.Duration
}

// Manager drives model turns for one session from bus events.
type Manager struct {
	session   *Session
	bus       *events.Bus
	client    llm.Client
	coord     *tools.Coordinator
	resources *resources.Manager
	opts      Options
	log       *zap.Logger

	mu        sync.Mutex
	active    map[string]bool
	followUps int
	lastTurn  chan struct{}

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewManager(s *Session, bus *events.Bus, client llm.Client, coord *tools.Coordinator, res *resources.Manager, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		session:   s,
		bus:       bus,
		client:    client,
		coord:     coord,
		resources: res,
		opts:      opts,
		log:       log.Named("session").With(zap.String("session_id", s.ID())),
		active:    map[string]bool{},
		entropy:   ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
	if res != nil {
		if _, err := res.Create(TranscriptName, resources.ReadWrite, nil); err != nil && !errors.Is(err, resources.ErrExists) {
			m.log.Warn("create transcript", zap.Error(err))
		}
	}
	return m
}

func (m *Manager) Session() *Session { return m.session }

// Register wires the manager's handlers onto the bus.
func (m *Manager) Register() {
	m.bus.RegisterUIHandler(m.handleUI)
	m.bus.RegisterModelHandler(m.handleModel)
	m.bus.RegisterAPIHandler(m.handleAPI)
}

func (m *Manager) handleUI(ctx context.Context, ev events.UIEvent) error {
	switch ev := ev.(type) {
	case events.UserInput:
		if strings.TrimSpace(ev.Text) == "" {
			return nil
		}
		return m.bus.PublishModel(events.ProcessUserMessage{Text: ev.Text})
	case events.RequestCancellation:
		m.Cancel(ev.RequestID)
	case events.ClearConversation:
		m.Reset()
	}
	return nil
}

func (m *Manager) handleAPI(_ context.Context, ev events.APIEvent) error {
	if ev, ok := ev.(events.CancelRequest); ok {
		m.Cancel(ev.RequestID)
	}
	return nil
}

func (m *Manager) handleModel(ctx context.Context, ev events.ModelEvent) error {
	switch ev := ev.(type) {
	case events.ProcessUserMessage:
		m.enqueueTurn(ctx, ev.Text)
	case events.ToolResult:
		raw, err := json.Marshal(ev.Result)
		if err != nil {
			return errors.Wrap(err, "encode tool result")
		}
		m.append(llm.RoleTool, fmt.Sprintf("Tool '%s' returned result: %s", ev.ToolID, raw))
	case events.ResetContext:
		m.Reset()
	}
	return nil
}

// Reset drops the conversation and the fingerprints of the current turn.
func (m *Manager) Reset() {
	m.session.Reset()
	m.coord.Clear()
	if m.resources != nil {
		if err := m.resources.Write(resources.MemoryURI(TranscriptName), nil); err != nil {
			m.log.Warn("reset transcript", zap.Error(err))
		}
	}
	m.log.Info("conversation cleared")
}

// Cancel marks requestID cancelled, or every active request when it is
// empty, and returns the ids it cancelled.
func (m *Manager) Cancel(requestID string) []string {
	m.mu.Lock()
	var ids []string
	if requestID == "" {
		for id := range m.active {
			m.active[id] = true
			ids = append(ids, id)
		}
	} else if _, ok := m.active[requestID]; ok {
		m.active[requestID] = true
		ids = append(ids, requestID)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := m.client.CancelRequest(id); err != nil {
			m.log.Warn("cancel model request", zap.String("request_id", id), zap.Error(err))
		}
		m.log.Info("request cancelled", zap.String("request_id", id))
	}
	return ids
}

// Active returns the ids of requests in flight.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) cancelled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[id]
}

func (m *Manager) begin(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[id] = false
}

func (m *Manager) end(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

func (m *Manager) takeFollowUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.followUps >= m.opts.MaxFollowUps {
		return false
	}
	m.followUps++
	return true
}

func (m *Manager) newRequestID() string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func (m *Manager) append(role llm.Role, content string) {
	m.session.Append(role, content)
	if m.resources == nil {
		return
	}
	line := fmt.Sprintf("%s: %s\n", role, content)
	if err := m.resources.Append(resources.MemoryURI(TranscriptName), []byte(line)); err != nil {
		m.log.Warn("append transcript", zap.Error(err))
	}
}

// enqueueTurn runs a turn off the model loop so that the chunks it publishes
// are delivered while it runs. Each turn waits for the one before it.
func (m *Manager) enqueueTurn(ctx context.Context, text string) {
	done := make(chan struct{})
	m.mu.Lock()
	prev := m.lastTurn
	m.lastTurn = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				return
			}
		}
		if err := m.runTurn(ctx, text); err != nil {
			m.log.Warn("turn failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every queued turn has finished.
func (m *Manager) Wait() {
	m.mu.Lock()
	last := m.lastTurn
	m.mu.Unlock()
	if last != nil {
		<-last
	}
}

func (m *Manager) runTurn(ctx context.Context, text string) error {
	if text != "" {
		// A user turn opens a fresh dedup window and follow-up budget.
		m.coord.Clear()
		m.mu.Lock()
		m.followUps = 0
		m.mu.Unlock()
		m.append(llm.RoleUser, text)
	}
	requestID := m.newRequestID()
	m.begin(requestID)
	defer m.end(requestID)
	log := m.log.With(zap.String("request_id", requestID))
	ctx = audit.WithScope(ctx, m.session.ID(), requestID)

	if err := m.bus.PublishAPI(events.SendRequest{RequestID: requestID}); err != nil {
		return err
	}
	reply, calls, err := m.request(ctx, requestID)
	cancelled := m.cancelled(requestID) || errors.Is(err, llm.ErrCancelled)
	if err != nil && !cancelled {
		log.Warn("model request failed", zap.Error(err))
		_ = m.bus.PublishAPI(events.Error{Message: err.Error()})
	}

	ran := 0
	if !cancelled {
		for _, call := range calls {
			if m.cancelled(requestID) {
				break
			}
			if m.runTool(ctx, requestID, call.Tool, call.Params) {
				ran++
			}
		}
		for _, call := range extract.ToolCalls(reply) {
			if m.cancelled(requestID) {
				break
			}
			if m.runTool(ctx, requestID, call.ToolID, call.Params) {
				ran++
			}
		}
		cancelled = m.cancelled(requestID)
	}

	if reply != "" {
		m.append(llm.RoleAssistant, reply)
	}
	if err := m.bus.PublishModel(events.LlmMessage{
		RequestID: requestID,
		Content:   extract.Filter(reply, extract.DefaultPlaceholder),
	}); err != nil {
		return err
	}
	if err := m.bus.PublishModel(events.LlmResponseComplete{RequestID: requestID, Cancelled: cancelled}); err != nil {
		return err
	}
	log.Debug("turn complete", zap.Int("tools_run", ran), zap.Bool("cancelled", cancelled))

	if ran > 0 && !cancelled && m.takeFollowUp() {
		return m.bus.PublishModel(events.ProcessUserMessage{})
	}
	return nil
}

// request asks the model for a reply. Streamed content is published chunk by
// chunk; consumption stops as soon as the request is cancelled.
func (m *Manager) request(ctx context.Context, requestID string) (string, []llm.ToolCall, error) {
	conv := m.session.Conversation(requestID)
	if !m.opts.Streaming {
		resp, err := m.client.SendMessage(ctx, conv)
		if err != nil {
			return "", nil, err
		}
		if resp.Content != "" {
			_ = m.bus.PublishModel(events.LlmStreamChunk{RequestID: requestID, Content: resp.Content})
		}
		return resp.Content, resp.ToolCalls, nil
	}

	chunks, err := m.client.StreamMessage(ctx, conv)
	if err != nil {
		return "", nil, err
	}
	if err := m.bus.PublishAPI(events.ProcessStream{RequestID: requestID}); err != nil {
		return "", nil, err
	}
	defer func() {
		go func() {
			for range chunks {
			}
		}()
	}()

	var (
		content strings.Builder
		calls   []llm.ToolCall
	)
	for chunk := range chunks {
		if m.cancelled(requestID) {
			return content.String(), calls, llm.ErrCancelled
		}
		if chunk.Err != nil {
			return content.String(), calls, chunk.Err
		}
		if chunk.IsToolCall && chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			_ = m.bus.PublishModel(events.LlmStreamChunk{RequestID: requestID, Content: chunk.Content})
		}
		if chunk.IsComplete {
			break
		}
	}
	return content.String(), calls, nil
}

func (m *Manager) runTool(ctx context.Context, requestID, toolID string, params json.RawMessage) bool {
	if !m.coord.ShouldExecute(toolID, params) {
		return false
	}
	_ = m.bus.PublishModel(events.ToolRequest{RequestID: requestID, ToolID: toolID, Params: params})
	if m.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ToolTimeout)
		defer cancel()
	}
	res := m.coord.Execute(ctx, toolID, params)
	_ = m.bus.PublishModel(events.ToolResult{RequestID: requestID, ToolID: toolID, Result: res})
	return true
}
