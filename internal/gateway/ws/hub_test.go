package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dohr-michael/crew/internal/events"
)

// stubControl records calls and returns scripted results. Recorded
// fields are written on the server goroutine, so reads go through the
// mutex.
type stubControl struct {
	mu          sync.Mutex
	spawnedDesc string
	spawnErr    error
	cancelledID string
	cancelErr   error
	listResult  any
}

func (s *stubControl) Spawn(description, label, profile string) (string, error) {
	if s.spawnErr != nil {
		return "", s.spawnErr
	}
	s.mu.Lock()
	s.spawnedDesc = description
	s.mu.Unlock()
	return "task_stub1", nil
}

func (s *stubControl) Cancel(id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.mu.Lock()
	s.cancelledID = id
	s.mu.Unlock()
	return nil
}

func (s *stubControl) List(includeDone bool) (any, error) {
	return s.listResult, nil
}

func (s *stubControl) lastSpawned() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnedDesc
}

func (s *stubControl) lastCancelled() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelledID
}

func newTestHub(t *testing.T) (*Hub, *events.Bus, *stubControl) {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	hub := NewHub(bus)
	t.Cleanup(hub.Close)

	control := &stubControl{listResult: []any{}}
	hub.SetTaskControl(control)
	return hub, bus, control
}

// dialTestHub starts an HTTP server around the hub and connects a client.
func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame Frame) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := MarshalFrame(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, resp, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := UnmarshalFrame(resp)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return got
}

func TestHub_SpawnTask(t *testing.T) {
	hub, _, control := newTestHub(t)
	conn := dialTestHub(t, hub)

	params, _ := json.Marshal(map[string]string{"description": "index the repo"})
	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-1",
		Method: string(MethodSpawnTask),
		Params: params,
	})

	if got.Type != FrameTypeResponse {
		t.Fatalf("expected response frame, got %q", got.Type)
	}
	if got.ID != "req-1" {
		t.Fatalf("expected id req-1, got %q", got.ID)
	}
	if got.OK == nil || !*got.OK {
		t.Fatalf("expected ok=true, error %q", got.Error)
	}

	var payload map[string]string
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["task_id"] != "task_stub1" {
		t.Fatalf("expected task_id task_stub1, got %q", payload["task_id"])
	}
	if got := control.lastSpawned(); got != "index the repo" {
		t.Fatalf("control saw description %q", got)
	}
}

func TestHub_SpawnTask_MissingDescription(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	params, _ := json.Marshal(map[string]string{})
	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-2",
		Method: string(MethodSpawnTask),
		Params: params,
	})

	if got.OK == nil || *got.OK {
		t.Fatal("expected ok=false")
	}
	if got.Error != "description is required" {
		t.Fatalf("unexpected error %q", got.Error)
	}
}

func TestHub_CancelTask(t *testing.T) {
	hub, _, control := newTestHub(t)
	conn := dialTestHub(t, hub)

	params, _ := json.Marshal(map[string]string{"task_id": "task_42"})
	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-3",
		Method: string(MethodCancelTask),
		Params: params,
	})

	if got.OK == nil || !*got.OK {
		t.Fatalf("expected ok=true, error %q", got.Error)
	}
	if got := control.lastCancelled(); got != "task_42" {
		t.Fatalf("control saw id %q", got)
	}
}

func TestHub_CancelTask_Error(t *testing.T) {
	hub, _, control := newTestHub(t)
	control.cancelErr = errors.New("task not found")
	conn := dialTestHub(t, hub)

	params, _ := json.Marshal(map[string]string{"task_id": "task_missing"})
	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-4",
		Method: string(MethodCancelTask),
		Params: params,
	})

	if got.OK == nil || *got.OK {
		t.Fatal("expected ok=false")
	}
	if got.Error != "task not found" {
		t.Fatalf("unexpected error %q", got.Error)
	}
}

func TestHub_ListTasks(t *testing.T) {
	hub, _, control := newTestHub(t)
	control.listResult = []map[string]string{{"id": "task_1"}, {"id": "task_2"}}
	conn := dialTestHub(t, hub)

	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-5",
		Method: string(MethodListTasks),
	})

	if got.OK == nil || !*got.OK {
		t.Fatalf("expected ok=true, error %q", got.Error)
	}

	var payload []map[string]string
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(payload))
	}
}

func TestHub_UnknownMethod(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-6",
		Method: "reboot_universe",
	})

	if got.OK == nil || *got.OK {
		t.Fatal("expected ok=false")
	}
	if got.Error != "unknown method: reboot_universe" {
		t.Fatalf("unexpected error %q", got.Error)
	}
}

func TestHub_EventBroadcast(t *testing.T) {
	hub, bus, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	// Let the server goroutine finish registering the client.
	time.Sleep(100 * time.Millisecond)

	bus.Publish(events.Event{
		ID:        "evt-1",
		TaskID:    "task_bcast",
		Type:      events.EventTaskProgress,
		Timestamp: time.Now(),
		Source:    events.SourceWorker,
		Payload:   map[string]any{"iteration": 3},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, err := UnmarshalFrame(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if frame.Type != FrameTypeEvent {
		t.Fatalf("expected event frame, got %q", frame.Type)
	}
	if frame.Event != string(events.EventTaskProgress) {
		t.Fatalf("expected event %q, got %q", events.EventTaskProgress, frame.Event)
	}

	var e events.Event
	if err := json.Unmarshal(frame.Payload, &e); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if e.TaskID != "task_bcast" {
		t.Fatalf("expected task id task_bcast, got %q", e.TaskID)
	}
}

func TestHub_NoTaskControl(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	hub := NewHub(bus)
	defer hub.Close()

	conn := dialTestHub(t, hub)

	got := roundTrip(t, conn, Frame{
		Type:   FrameTypeRequest,
		ID:     "req-7",
		Method: string(MethodListTasks),
	})

	if got.OK == nil || *got.OK {
		t.Fatal("expected ok=false")
	}
	if got.Error != "task control unavailable" {
		t.Fatalf("unexpected error %q", got.Error)
	}
}
