package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Turn is one scripted model reply.
type Turn struct {
	Content   string         `toml:"content"`
	ToolCalls []ScriptedCall `toml:"tool_calls"`
}

type ScriptedCall struct {
	Tool   string         `toml:"tool"`
	Params map[string]any `toml:"params"`
}

type scriptFile struct {
	DelayMs int    `toml:"delay_ms"`
	Turns   []Turn `toml:"turn"`
}

// ScriptedClient replays a fixed list of turns, one per request. Once the
// script is exhausted every reply is empty.
type ScriptedClient struct {
	// Delay is slept between streamed words.
	Delay time.Duration

	mu        sync.Mutex
	turns     []Turn
	next      int
	cancelled map[string]chan struct{}
	requests  []Conversation
}

func NewScriptedClient(turns ...Turn) *ScriptedClient {
	return &ScriptedClient{turns: turns, cancelled: map[string]chan struct{}{}}
}

// LoadScript reads a TOML script:
//
//	delay_ms = 20
//	[[turn]]
//	content = "Listing files."
//	[[turn.tool_calls]]
//	tool = "shell"
//	params = { command = "ls" }
func LoadScript(path string) (*ScriptedClient, error) {
	var f scriptFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrapf(err, "decode script %s", path)
	}
	c := NewScriptedClient(f.Turns...)
	c.Delay = time.Duration(f.DelayMs) * time.Millisecond
	return c, nil
}

// Requests returns the conversations received so far.
func (c *ScriptedClient) Requests() []Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Conversation(nil), c.requests...)
}

func (c *ScriptedClient) take(conv Conversation) (Turn, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, conv)
	var t Turn
	if c.next < len(c.turns) {
		t = c.turns[c.next]
		c.next++
	}
	done, ok := c.cancelled[conv.RequestID]
	if !ok {
		done = make(chan struct{})
		c.cancelled[conv.RequestID] = done
	}
	return t, done
}

func (c *ScriptedClient) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancelled, id)
}

func (c *ScriptedClient) SendMessage(ctx context.Context, conv Conversation) (Response, error) {
	t, done := c.take(conv)
	defer c.forget(conv.RequestID)
	select {
	case <-done:
		return Response{}, ErrCancelled
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	calls, err := t.calls()
	if err != nil {
		return Response{}, err
	}
	return Response{ID: conv.RequestID, Content: t.Content, ToolCalls: calls}, nil
}

func (c *ScriptedClient) StreamMessage(ctx context.Context, conv Conversation) (<-chan StreamChunk, error) {
	t, done := c.take(conv)
	calls, err := t.calls()
	if err != nil {
		c.forget(conv.RequestID)
		return nil, err
	}
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer c.forget(conv.RequestID)

		send := func(chunk StreamChunk) bool {
			chunk.ID = conv.RequestID
			select {
			case <-done:
				return false
			case <-ctx.Done():
				return false
			default:
			}
			select {
			case out <- chunk:
				return true
			case <-done:
				return false
			case <-ctx.Done():
				return false
			}
		}
		stop := func() {
			err := ErrCancelled
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			select {
			case out <- StreamChunk{ID: conv.RequestID, Err: err}:
			case <-time.After(time.Second):
			}
		}

		for _, word := range strings.SplitAfter(t.Content, " ") {
			if word == "" {
				continue
			}
			if !send(StreamChunk{Content: word}) {
				stop()
				return
			}
			if c.Delay > 0 {
				time.Sleep(c.Delay)
			}
		}
		for i := range calls {
			if !send(StreamChunk{IsToolCall: true, ToolCall: &calls[i]}) {
				stop()
				return
			}
		}
		send(StreamChunk{IsComplete: true})
	}()
	return out, nil
}

// CancelRequest stops an in-flight request. Unknown ids are marked so that a
// request started later with the same id ends immediately.
func (c *ScriptedClient) CancelRequest(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	done, ok := c.cancelled[id]
	if !ok {
		done = make(chan struct{})
		c.cancelled[id] = done
	}
	select {
	case <-done:
	default:
		close(done)
	}
	return nil
}

func (t Turn) calls() ([]ToolCall, error) {
	out := make([]ToolCall, 0, len(t.ToolCalls))
	for _, sc := range t.ToolCalls {
		params := json.RawMessage("{}")
		if len(sc.Params) > 0 {
			raw, err := json.Marshal(sc.Params)
			if err != nil {
				return nil, errors.Wrapf(err, "encode params for %s", sc.Tool)
			}
			params = raw
		}
		out = append(out, ToolCall{ID: uuid.NewString(), Tool: sc.Tool, Params: params})
	}
	return out, nil
}
