package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"go.uber.org/zap/zaptest"

	"github.com/samiralibabic/mcpterm/internal/protocol"
)

func idPtr(id protocol.ID) *protocol.ID {
	return &id
}

func echo(_ context.Context, req protocol.Request) protocol.Response {
	return protocol.Result(protocol.RequestID(req), json.RawMessage(req.Params))
}

func TestProcessRoutesToHandler(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	d.Register("echo", echo)
	resp := d.Process(context.Background(), protocol.Request{
		JSONRPC: protocol.Version,
		Method:  "echo",
		Params:  json.RawMessage(`{"a":1}`),
		ID:      idPtr(protocol.IntID(9)),
	})
	if resp.IsError() {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.ID != protocol.IntID(9) || string(resp.Result) != `{"a":1}` {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestProcessMethodNotFound(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	for _, id := range []*protocol.ID{idPtr(protocol.StringID("q")), idPtr(protocol.IntID(4)), nil} {
		resp := d.Process(context.Background(), protocol.Request{JSONRPC: protocol.Version, Method: "nope", ID: id})
		if resp.Error == nil || resp.Error.Code != protocol.MethodNotFound {
			t.Fatalf("expected MethodNotFound, got %#v", resp)
		}
		want := protocol.NullID
		if id != nil {
			want = *id
		}
		if resp.ID != want {
			t.Fatalf("response id %v, want %v", resp.ID, want)
		}
	}
}

func TestProcessValidationFailure(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	d.Register("echo", echo)
	resp := d.Process(context.Background(), protocol.Request{JSONRPC: "1.0", Method: "echo", ID: idPtr(protocol.IntID(1))})
	if resp.Error == nil || resp.Error.Code != protocol.InvalidRequest || resp.ID != protocol.IntID(1) {
		t.Fatalf("expected InvalidRequest bound to id 1, got %#v", resp)
	}
}

func TestRegisterReplaceAndDeregister(t *testing.T) {
	d := New(nil)
	d.Register("m", echo)
	d.Register("m", func(_ context.Context, req protocol.Request) protocol.Response {
		return protocol.Result(protocol.RequestID(req), "replaced")
	})
	resp := d.Process(context.Background(), protocol.Request{JSONRPC: protocol.Version, Method: "m", ID: idPtr(protocol.IntID(1))})
	if string(resp.Result) != `"replaced"` {
		t.Fatalf("expected replaced handler, got %s", resp.Result)
	}
	if !d.Deregister("m") {
		t.Fatal("expected Deregister to report an existing handler")
	}
	if d.Deregister("m") {
		t.Fatal("expected second Deregister to be a no-op")
	}
	if len(d.Methods()) != 0 {
		t.Fatalf("unexpected methods: %v", d.Methods())
	}
}

func TestHandlerPanicBecomesInternalError(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	d.Register("boom", func(context.Context, protocol.Request) protocol.Response {
		panic("boom")
	})
	resp := d.Process(context.Background(), protocol.Request{JSONRPC: protocol.Version, Method: "boom", ID: idPtr(protocol.IntID(2))})
	if resp.Error == nil || resp.Error.Code != protocol.InternalError || resp.ID != protocol.IntID(2) {
		t.Fatalf("expected InternalError, got %#v", resp)
	}
}

func TestProcessJSON(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	d.Register("echo", echo)

	out, err := d.ProcessJSON(context.Background(), []byte(`{"jsonrpc":"2.0","method":"echo","params":[1],"id":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"jsonrpc":"2.0","result":[1],"id":"x"}` {
		t.Fatalf("unexpected output: %s", out)
	}

	_, err = d.ProcessJSON(context.Background(), []byte(`{"jsonrpc":"2.0",`))
	var rpcErr *protocol.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}

	out, err = d.ProcessJSON(context.Background(), []byte(`{"jsonrpc":"2.0","method":"missing","id":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.MethodNotFound || resp.ID != protocol.IntID(5) {
		t.Fatalf("unexpected response: %s", out)
	}
}

func TestConcurrentProcessAndRegister(t *testing.T) {
	d := New(nil)
	d.Register("echo", echo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				resp := d.Process(context.Background(), protocol.Request{JSONRPC: protocol.Version, Method: "echo", ID: idPtr(protocol.IntID(int64(j)))})
				if resp.IsError() {
					t.Errorf("unexpected error: %v", resp.Error)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				d.Register("other", echo)
				d.Deregister("other")
			}
		}()
	}
	wg.Wait()
}

func TestDecodeParams(t *testing.T) {
	type params struct {
		Name string `json:"name"`
	}
	if _, err := DecodeParams[params](protocol.Request{}); err == nil || err.Code != protocol.InvalidParams {
		t.Fatalf("expected InvalidParams for missing params, got %v", err)
	}
	p, err := DecodeParams[params](protocol.Request{Params: json.RawMessage(`{"name":"n"}`)})
	if err != nil || p.Name != "n" {
		t.Fatalf("unexpected decode: %#v %v", p, err)
	}
}
