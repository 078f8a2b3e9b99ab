package discovery

import "testing"

func TestSubscribeDeliversSnapshotSynchronously(t *testing.T) {
	h := NewHub(&mockLogger{})

	var got []*Node
	called := 0
	unsubscribe := h.Subscribe(func(nodes []*Node) {
		called++
		got = nodes
	}, []*Node{{ID: "n1"}})

	// The snapshot must have arrived before Subscribe returned
	if called != 1 {
		t.Fatalf("Expected exactly one synchronous delivery, got %d", called)
	}
	if len(got) != 1 || got[0].ID != "n1" {
		t.Errorf("Unexpected snapshot: %+v", got)
	}
	unsubscribe()
}

func TestSubscribeEmptySnapshot(t *testing.T) {
	h := NewHub(&mockLogger{})

	called := 0
	h.Subscribe(func(nodes []*Node) {
		called++
		if nodes == nil {
			return
		}
		if len(nodes) != 0 {
			t.Errorf("Expected empty snapshot, got %d nodes", len(nodes))
		}
	}, nil)

	if called != 1 {
		t.Errorf("Expected delivery even for an empty registry, got %d calls", called)
	}
}

func TestBroadcastReachesAllListeners(t *testing.T) {
	h := NewHub(&mockLogger{})

	counts := make([]int, 3)
	for i := range counts {
		i := i
		h.Subscribe(func(nodes []*Node) { counts[i]++ }, nil)
	}

	h.Broadcast([]*Node{{ID: "n1"}})

	for i, c := range counts {
		// one initial snapshot + one broadcast
		if c != 2 {
			t.Errorf("Listener %d saw %d deliveries, expected 2", i, c)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(&mockLogger{})

	calls := 0
	unsubscribe := h.Subscribe(func(nodes []*Node) { calls++ }, nil)
	unsubscribe()
	h.Broadcast(nil)

	if calls != 1 {
		t.Errorf("Expected no deliveries after unsubscribe, got %d total", calls)
	}
	if h.Len() != 0 {
		t.Errorf("Expected no listeners, got %d", h.Len())
	}

	// Calling unsubscribe again must be harmless
	unsubscribe()
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	h := NewHub(&mockLogger{})

	h.Subscribe(func(nodes []*Node) {
		if nodes != nil {
			panic("bad listener")
		}
	}, nil)

	survived := 0
	h.Subscribe(func(nodes []*Node) { survived++ }, nil)

	h.Broadcast([]*Node{{ID: "n1"}})

	if survived != 2 {
		t.Errorf("Expected the healthy listener to receive both deliveries, got %d", survived)
	}
}
