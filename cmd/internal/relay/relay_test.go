package relay

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func newListener(id string) *Listener {
	return &Listener{ID: id, Send: make(chan []byte, 256)}
}

func TestGroup_JoinLeave(t *testing.T) {
	group := NewGroup()
	listener := newListener("l-1")

	group.Join(listener)
	if group.Size() != 1 {
		t.Fatalf("expected 1 member, got %d", group.Size())
	}

	group.Leave(listener)
	if group.Size() != 0 {
		t.Fatalf("expected 0 members, got %d", group.Size())
	}
}

func TestGroup_PublishReachesAllMembers(t *testing.T) {
	group := NewGroup()

	members := []*Listener{newListener("m-1"), newListener("m-2"), newListener("m-3")}
	for _, m := range members {
		group.Join(m)
	}

	group.Publish(Event{Message: "New appointment booked!"})

	for _, m := range members {
		select {
		case data := <-m.Send:
			var received Event
			if err := json.Unmarshal(data, &received); err != nil {
				t.Fatalf("failed to unmarshal event: %v", err)
			}
			if received.Message != "New appointment booked!" {
				t.Fatalf("unexpected message: %s", received.Message)
			}
		case <-time.After(time.Second):
			t.Fatalf("member %s did not receive event", m.ID)
		}
	}
}

func TestGroup_DepartedMemberReceivesNothing(t *testing.T) {
	group := NewGroup()

	stayer := newListener("stay-1")
	leaver := newListener("leave-1")
	group.Join(stayer)
	group.Join(leaver)
	group.Leave(leaver)

	group.Publish(Event{Message: "update"})

	select {
	case <-stayer.Send:
	case <-time.After(time.Second):
		t.Fatal("remaining member did not receive event")
	}

	if data, ok := <-leaver.Send; ok {
		t.Fatalf("departed member received %q", data)
	}
}

func TestGroup_LeaveClosesSendChannel(t *testing.T) {
	group := NewGroup()
	listener := newListener("close-1")

	group.Join(listener)
	group.Leave(listener)

	_, ok := <-listener.Send
	if ok {
		t.Fatal("expected Send channel to be closed after leave")
	}
}

func TestGroup_LeaveTwiceIsHarmless(t *testing.T) {
	group := NewGroup()
	listener := newListener("twice-1")

	group.Join(listener)
	group.Leave(listener)
	group.Leave(listener) // Must not panic on double close.
}

func TestGroup_PublishSkipsFullBuffer(t *testing.T) {
	group := NewGroup()
	slow := &Listener{ID: "slow-1", Send: make(chan []byte, 1)}
	group.Join(slow)

	// Second publish must not block even though the buffer is full.
	group.Publish(Event{Message: "first"})
	done := make(chan struct{})
	go func() {
		group.Publish(Event{Message: "second"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow member")
	}
}

func TestGroup_ConcurrentJoinLeave(t *testing.T) {
	group := NewGroup()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	listeners := make([]*Listener, n)
	for i := range listeners {
		listeners[i] = newListener("concurrent")
	}

	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			group.Join(listeners[idx])
		}(i)
	}
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			group.Leave(listeners[idx])
		}(i)
	}
	wg.Wait()
}

func TestHandler_InboundMessageIsBroadcastToAllIncludingSender(t *testing.T) {
	group := NewGroup()
	handler := NewHandler(group)

	e := echo.New()
	e.GET("/ws/appointments", handler.HandleAppointments)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/appointments"

	sender, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer sender.Close()

	other, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer other.Close()

	waitForMembers(t, group, 2)

	err = sender.WriteMessage(websocket.TextMessage, []byte(`{"message":"Appointment confirmed"}`))
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	for _, conn := range []*websocket.Conn{sender, other} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read broadcast: %v", err)
		}

		var received Event
		if err := json.Unmarshal(data, &received); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if received.Message != "Appointment confirmed" {
			t.Fatalf("unexpected message: %s", received.Message)
		}
	}
}

func TestHandler_DisconnectLeavesGroup(t *testing.T) {
	group := NewGroup()
	handler := NewHandler(group)

	e := echo.New()
	e.GET("/ws/appointments", handler.HandleAppointments)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/appointments"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	waitForMembers(t, group, 1)
	conn.Close()
	waitForMembers(t, group, 0)
}

func waitForMembers(t *testing.T, group *Group, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if group.Size() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d members, got %d", want, group.Size())
}
