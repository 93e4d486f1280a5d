package events

import "testing"

func TestCollectingSink_PreservesOrder(t *testing.T) {
	sink := &CollectingSink{}
	_ = sink.Send(Thinking("c1", "t1", "considering"))
	_ = sink.Send(ToolCall("c1", "t1", "web-search", map[string]any{"query": "go"}))
	_ = sink.Send(ToolResult("c1", "t1", "web-search", true, "ok", nil))
	_ = sink.Send(Text("c1", "t1", "done"))

	if len(sink.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(sink.Events))
	}
	wantKinds := []Kind{KindThinking, KindToolCall, KindToolResult, KindText}
	for i, k := range wantKinds {
		if sink.Events[i].Kind != k {
			t.Fatalf("event %d: expected kind %s, got %s", i, k, sink.Events[i].Kind)
		}
	}
}

func TestChannelSink_BlocksThenDelivers(t *testing.T) {
	sink := NewChannelSink(1)
	done := make(chan struct{})
	go func() {
		_ = sink.Send(Text("c1", "t1", "first"))
		_ = sink.Send(Text("c1", "t1", "second"))
		sink.Close()
		close(done)
	}()

	var received []Event
	for e := range sink.Events() {
		received = append(received, e)
	}
	<-done

	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	if received[0].Content != "first" || received[1].Content != "second" {
		t.Fatalf("events delivered out of order: %+v", received)
	}
}

func TestNullSink_DiscardsSilently(t *testing.T) {
	var s Sink = NullSink{}
	if err := s.Send(Text("c1", "t1", "ignored")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
