package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dohr-michael/crew/internal/events"
	wsprotocol "github.com/dohr-michael/crew/internal/gateway/ws"
)

type fakeControl struct{}

func (fakeControl) Spawn(description, label, profile string) (string, error) {
	return "task_fake1", nil
}

func (fakeControl) Cancel(id string) error { return nil }

func (fakeControl) List(includeDone bool) (any, error) {
	return []map[string]string{{"id": "task_fake1"}}, nil
}

func newTestClient(t *testing.T) (*Client, *events.Bus) {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	hub := wsprotocol.NewHub(bus)
	t.Cleanup(hub.Close)
	hub.SetTaskControl(fakeControl{})

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	client, err := Dial(ctx, srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, bus
}

func TestClient_SpawnRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)

	reqID, err := client.SpawnTask("inspect the repo", "", "")
	if err != nil {
		t.Fatalf("SpawnTask: %v", err)
	}

	frame, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if frame.Type != wsprotocol.FrameTypeResponse {
		t.Fatalf("expected response frame, got %q", frame.Type)
	}
	if frame.ID != reqID {
		t.Fatalf("expected id %q, got %q", reqID, frame.ID)
	}
	if frame.OK == nil || !*frame.OK {
		t.Fatalf("expected ok=true, error %q", frame.Error)
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["task_id"] != "task_fake1" {
		t.Fatalf("expected task_id task_fake1, got %q", payload["task_id"])
	}
}

func TestClient_RequestIDsIncrement(t *testing.T) {
	client, _ := newTestClient(t)

	first, err := client.ListTasks(false)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	second, err := client.CancelTask("task_fake1")
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct request ids, got %q twice", first)
	}
	if first != "req-1" || second != "req-2" {
		t.Fatalf("expected req-1 and req-2, got %q and %q", first, second)
	}
}

func TestClient_ReceivesEvents(t *testing.T) {
	client, bus := newTestClient(t)

	// Let the server goroutine finish registering the connection.
	time.Sleep(100 * time.Millisecond)

	bus.Publish(events.Event{
		ID:        "evt-1",
		TaskID:    "task_live",
		Type:      events.EventTaskCompleted,
		Timestamp: time.Now(),
		Source:    events.SourceWorker,
		Payload:   map[string]any{"result": "done"},
	})

	frame, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if frame.Type != wsprotocol.FrameTypeEvent {
		t.Fatalf("expected event frame, got %q", frame.Type)
	}
	if frame.Event != string(events.EventTaskCompleted) {
		t.Fatalf("expected event %q, got %q", events.EventTaskCompleted, frame.Event)
	}
}
