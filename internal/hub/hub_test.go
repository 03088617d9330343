package hub

import (
	"testing"
)

func newTestClient(id string) *Client {
	return NewClient(id, nil, Config{MaxMessageSize: 1024})
}

func TestJoinRefcount(t *testing.T) {
	h := NewHub()

	a := newTestClient("a")
	b := newTestClient("b")
	h.Register(a)
	h.Register(b)

	if first := h.Join(a, "channel:c1"); !first {
		t.Fatal("first member should report first=true")
	}
	if first := h.Join(b, "channel:c1"); first {
		t.Fatal("second member should report first=false")
	}
	if got := h.RoomCount("channel:c1"); got != 2 {
		t.Fatalf("RoomCount = %d, want 2", got)
	}

	if last := h.Leave(a, "channel:c1"); last {
		t.Fatal("leave with another member remaining should report last=false")
	}
	if last := h.Leave(b, "channel:c1"); !last {
		t.Fatal("final leave should report last=true")
	}
	if got := h.RoomCount("channel:c1"); got != 0 {
		t.Fatalf("RoomCount after empty = %d, want 0", got)
	}
}

func TestJoinIdempotent(t *testing.T) {
	h := NewHub()

	a := newTestClient("a")
	h.Register(a)

	if first := h.Join(a, "global"); !first {
		t.Fatal("first join should report first=true")
	}
	if first := h.Join(a, "global"); first {
		t.Fatal("repeat join should report first=false")
	}
	if got := h.RoomCount("global"); got != 1 {
		t.Fatalf("RoomCount = %d, want 1", got)
	}

	if last := h.Leave(a, "global"); !last {
		t.Fatal("single leave should empty the room")
	}
	if last := h.Leave(a, "global"); last {
		t.Fatal("leave on a room not held should report last=false")
	}
}

func TestBroadcastRoomIsolation(t *testing.T) {
	h := NewHub()

	a := newTestClient("a")
	b := newTestClient("b")
	h.Register(a)
	h.Register(b)
	h.Join(a, "user:alice")
	h.Join(b, "user:bob")

	h.Broadcast("user:alice", []byte(`{"hello":"alice"}`))

	select {
	case msg := <-a.Send:
		if string(msg) != `{"hello":"alice"}` {
			t.Fatalf("unexpected payload %s", msg)
		}
	default:
		t.Fatal("room member did not receive broadcast")
	}

	select {
	case msg := <-b.Send:
		t.Fatalf("unrelated room received broadcast: %s", msg)
	default:
	}
}

func TestUnregisterReleasesRooms(t *testing.T) {
	h := NewHub()

	a := newTestClient("a")
	b := newTestClient("b")
	h.Register(a)
	h.Register(b)
	h.Join(a, "channel:c1")
	h.Join(a, "global")
	h.Join(b, "global")

	emptied := h.Unregister(a)
	if len(emptied) != 1 || emptied[0] != "channel:c1" {
		t.Fatalf("emptied = %v, want [channel:c1]", emptied)
	}
	if got := h.RoomCount("global"); got != 1 {
		t.Fatalf("RoomCount(global) = %d, want 1", got)
	}

	select {
	case _, ok := <-a.Send:
		if ok {
			t.Fatal("send channel should be closed, not delivering")
		}
	default:
		t.Fatal("send channel not closed on unregister")
	}

	if emptied := h.Unregister(a); emptied != nil {
		t.Fatalf("repeat unregister emptied = %v, want nil", emptied)
	}
}

func TestSendAfterCloseAllDoesNotPanic(t *testing.T) {
	h := NewHub()

	a := newTestClient("a")
	h.Register(a)
	h.Join(a, "global")

	h.CloseAll()

	// Handlers driven by a still-live read pump may race shutdown; a late
	// send must be dropped, not panic.
	if err := a.SendMessage(map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("SendMessage after CloseAll: %v", err)
	}
	h.Broadcast("global", []byte(`{}`))

	if emptied := h.Unregister(a); emptied != nil {
		t.Fatalf("unregister after CloseAll emptied = %v, want nil", emptied)
	}
	if err := a.SendMessage(map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("SendMessage after Unregister: %v", err)
	}
}
