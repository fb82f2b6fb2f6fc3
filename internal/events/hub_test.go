package events

import "testing"

func TestHubFanOutAndDrop(t *testing.T) {
	h := NewHub(1)
	a, unsubA := h.Subscribe()
	b, unsubB := h.Subscribe()
	defer unsubB()

	h.Publish("model.llm_stream_chunk", LlmStreamChunk{RequestID: "r", Content: "hi"})
	h.Publish("model.llm_stream_chunk", LlmStreamChunk{RequestID: "r", Content: "dropped"})

	got := <-a
	if got.Method != "model.llm_stream_chunk" || got.Params.(LlmStreamChunk).Content != "hi" {
		t.Fatalf("unexpected notification %#v", got)
	}
	if len(a) != 0 || len(b) != 1 {
		t.Fatalf("expected overflow to be dropped, got len(a)=%d len(b)=%d", len(a), len(b))
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Subscribers())
	}
}
