package relay

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"studyhall/core"
)

type emission struct {
	conn    ConnID
	event   string
	payload []any
}

// fakeTransport records every delivery instead of sending it anywhere.
type fakeTransport struct {
	mu        sync.Mutex
	emissions []emission
}

func (t *fakeTransport) ToConnection(conn ConnID, event string, payload ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emissions = append(t.emissions, emission{conn: conn, event: event, payload: payload})
	return nil
}

func (t *fakeTransport) sentTo(conn ConnID, event string) []emission {
	t.mu.Lock()
	defer t.mu.Unlock()
	var matched []emission
	for _, e := range t.emissions {
		if e.conn == conn && e.event == event {
			matched = append(matched, e)
		}
	}
	return matched
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emissions = nil
}

// stubStore is an in-memory DocumentStore with switchable failure modes.
type stubStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	failFind bool
	failSave bool
}

func newStubStore() *stubStore {
	return &stubStore{docs: make(map[string][]byte)}
}

func (s *stubStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, errors.New("store unavailable")
	}
	data, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrDocumentNotFound)
	}
	return &core.Document{ID: id, Data: data}, nil
}

func (s *stubStore) Create(ctx context.Context, document *core.Document) error {
	return s.Save(ctx, document.ID, document.Data)
}

func (s *stubStore) Save(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("store unavailable")
	}
	s.docs[id] = append([]byte(nil), data...)
	return nil
}

func newTestRelay() (*Relay, *stubStore, *fakeTransport) {
	store := newStubStore()
	transport := &fakeTransport{}
	return New(NewRegistry(), store, transport), store, transport
}

func TestGetDocument_DefaultPayload(t *testing.T) {
	r, store, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})

	loads := transport.sentTo("conn-a", "load-document")
	if len(loads) != 1 {
		t.Fatalf("expected 1 load-document, got %d", len(loads))
	}
	if got := loads[0].payload[0]; got != "" {
		t.Errorf("default payload = %v, want empty string", got)
	}
	if _, err := store.FindID(context.Background(), "doc1"); err != nil {
		t.Errorf("document should exist in store after first get: %v", err)
	}
	if got := r.Registry().Count("doc1"); got != 1 {
		t.Errorf("document room count = %d, want 1", got)
	}
}

func TestGetDocument_SecondConnectionSeesSavedPayload(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})
	r.Dispatch(EventSaveDocument, "conn-a", []any{"hello"})
	transport.reset()

	r.Dispatch(EventGetDocument, "conn-b", []any{"doc1"})

	loads := transport.sentTo("conn-b", "load-document")
	if len(loads) != 1 {
		t.Fatalf("expected 1 load-document, got %d", len(loads))
	}
	if got := loads[0].payload[0]; got != "hello" {
		t.Errorf("payload = %v, want %q (saved, not default)", got, "hello")
	}
}

func TestSendChanges_DeliveredToPeersNotSender(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})
	r.Dispatch(EventGetDocument, "conn-b", []any{"doc1"})
	r.Dispatch(EventGetDocument, "conn-c", []any{"doc1"})
	transport.reset()

	delta := map[string]any{"op": "insert", "pos": float64(0), "text": "X"}
	r.Dispatch(EventSendChanges, "conn-a", []any{delta})

	for _, peer := range []ConnID{"conn-b", "conn-c"} {
		received := transport.sentTo(peer, "receive-changes")
		if len(received) != 1 {
			t.Fatalf("peer %s: expected 1 receive-changes, got %d", peer, len(received))
		}
		if !reflect.DeepEqual(received[0].payload[0], delta) {
			t.Errorf("peer %s: payload = %v, want %v", peer, received[0].payload[0], delta)
		}
	}
	if echoed := transport.sentTo("conn-a", "receive-changes"); len(echoed) != 0 {
		t.Errorf("sender received its own delta back: %v", echoed)
	}
}

func TestSaveDocument_PersistsVerbatim(t *testing.T) {
	r, store, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})
	payload := map[string]any{"ops": []any{map[string]any{"insert": "hi"}}}
	r.Dispatch(EventSaveDocument, "conn-a", []any{payload})
	transport.reset()

	r.Dispatch(EventGetDocument, "conn-b", []any{"doc1"})
	loads := transport.sentTo("conn-b", "load-document")
	if len(loads) != 1 {
		t.Fatalf("expected 1 load-document, got %d", len(loads))
	}
	if !reflect.DeepEqual(loads[0].payload[0], payload) {
		t.Errorf("round-tripped payload = %v, want %v", loads[0].payload[0], payload)
	}

	if _, err := store.FindID(context.Background(), "doc1"); err != nil {
		t.Errorf("saved document missing from store: %v", err)
	}
}

func TestSaveDocument_NoAcknowledgement(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})
	r.Dispatch(EventGetDocument, "conn-b", []any{"doc1"})
	transport.reset()

	r.Dispatch(EventSaveDocument, "conn-a", []any{"state"})

	if len(transport.emissions) != 0 {
		t.Errorf("save-document must not emit anything, got %v", transport.emissions)
	}
}

func TestSaveDocument_StoreFailureStaysSilent(t *testing.T) {
	r, store, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})
	r.Dispatch(EventGetDocument, "conn-b", []any{"doc1"})
	store.failSave = true
	transport.reset()

	r.Dispatch(EventSaveDocument, "conn-a", []any{"state"})

	// Best-effort persistence: neither the sender nor the peers hear about
	// the failure.
	if len(transport.emissions) != 0 {
		t.Errorf("store failure leaked to connections: %v", transport.emissions)
	}
}

func TestGetDocument_StoreFailureNoReply(t *testing.T) {
	r, store, transport := newTestRelay()
	store.failFind = true

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})

	if loads := transport.sentTo("conn-a", "load-document"); len(loads) != 0 {
		t.Errorf("expected no load-document on store failure, got %v", loads)
	}
}

func TestJoinRoom_EmitsUserCountToRoom(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventJoinRoom, "conn-a", []any{map[string]any{"roomId": "board1"}})
	if counts := transport.sentTo("conn-a", "userCount"); len(counts) != 1 || counts[0].payload[0] != 1 {
		t.Fatalf("first join userCount = %v, want [1]", counts)
	}
	transport.reset()

	r.Dispatch(EventJoinRoom, "conn-b", []any{map[string]any{"roomId": "board1"}})
	for _, conn := range []ConnID{"conn-a", "conn-b"} {
		counts := transport.sentTo(conn, "userCount")
		if len(counts) != 1 || counts[0].payload[0] != 2 {
			t.Errorf("conn %s userCount = %v, want [2]", conn, counts)
		}
	}
}

func TestJoinRoom_CallRoomFull(t *testing.T) {
	r, _, transport := newTestRelay()

	for i := 0; i < DefaultCallCapacity; i++ {
		conn := ConnID(fmt.Sprintf("conn-%d", i))
		r.Dispatch(EventJoinRoom, conn, []any{map[string]any{"roomId": "call1", "kind": "call"}})
	}
	transport.reset()

	r.Dispatch(EventJoinRoom, "conn-late", []any{map[string]any{"roomId": "call1", "kind": "call"}})

	full := transport.sentTo("conn-late", "room full")
	if len(full) != 1 {
		t.Fatalf("expected 1 room-full notice, got %d", len(full))
	}
	if full[0].payload[0] != "call1" {
		t.Errorf("room-full payload = %v, want call1", full[0].payload[0])
	}
	if got := r.Registry().Count("call1"); got != DefaultCallCapacity {
		t.Errorf("room count = %d, want %d (rejected join must not be admitted)", got, DefaultCallCapacity)
	}
	if counts := transport.sentTo("conn-late", "userCount"); len(counts) != 0 {
		t.Errorf("rejected join must not trigger a presence update, got %v", counts)
	}
}

func TestDisconnect_CleansUpAllRooms(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", []any{"doc1"})
	r.Dispatch(EventGetDocument, "conn-b", []any{"doc1"})
	r.Dispatch(EventJoinRoom, "conn-a", []any{map[string]any{"roomId": "board1"}})
	r.Dispatch(EventJoinRoom, "conn-c", []any{map[string]any{"roomId": "board1"}})
	transport.reset()

	r.HandleDisconnect("conn-a")

	if got := r.Registry().Count("doc1"); got != 1 {
		t.Errorf("doc1 count = %d, want 1", got)
	}
	if got := r.Registry().Count("board1"); got != 1 {
		t.Errorf("board1 count = %d, want 1", got)
	}

	// Each survivor gets exactly one presence update for its room.
	for _, survivor := range []ConnID{"conn-b", "conn-c"} {
		counts := transport.sentTo(survivor, "userCount")
		if len(counts) != 1 || counts[0].payload[0] != 1 {
			t.Errorf("survivor %s userCount = %v, want [1]", survivor, counts)
		}
	}
	if ghost := transport.sentTo("conn-a", "userCount"); len(ghost) != 0 {
		t.Errorf("disconnected conn received presence updates: %v", ghost)
	}
}

func TestSignal_PointToPointForward(t *testing.T) {
	r, _, transport := newTestRelay()

	envelope := map[string]any{"to": "conn-b", "signal": map[string]any{"type": "offer"}}
	r.Dispatch(EventSendingSignal, "conn-a", []any{envelope})

	forwarded := transport.sentTo("conn-b", "sending signal")
	if len(forwarded) != 1 {
		t.Fatalf("expected 1 forwarded signal, got %d", len(forwarded))
	}
	payload, ok := forwarded[0].payload[0].(map[string]any)
	if !ok {
		t.Fatalf("forwarded payload has wrong type: %T", forwarded[0].payload[0])
	}
	if payload["from"] != "conn-a" {
		t.Errorf("from = %v, want conn-a", payload["from"])
	}
	if !reflect.DeepEqual(payload["signal"], envelope["signal"]) {
		t.Errorf("signal payload altered in transit: %v", payload["signal"])
	}
	if stray := transport.sentTo("conn-a", "sending signal"); len(stray) != 0 {
		t.Errorf("signal echoed to sender: %v", stray)
	}
}

func TestSignal_TargetFieldAccepted(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventReturningSignal, "conn-b", []any{map[string]any{"target": "conn-a", "signal": "answer"}})

	if forwarded := transport.sentTo("conn-a", "returning signal"); len(forwarded) != 1 {
		t.Errorf("expected 1 forwarded signal via target field, got %d", len(forwarded))
	}
}

func TestWhiteboard_BroadcastKeepsEventName(t *testing.T) {
	r, _, transport := newTestRelay()

	for _, conn := range []ConnID{"conn-a", "conn-b", "conn-c"} {
		r.Dispatch(EventJoinRoom, conn, []any{map[string]any{"roomId": "board1"}})
	}
	transport.reset()

	stroke := map[string]any{"roomId": "board1", "x": float64(10), "y": float64(20)}
	r.Dispatch(EventDraw, "conn-a", []any{stroke})

	for _, peer := range []ConnID{"conn-b", "conn-c"} {
		received := transport.sentTo(peer, "draw")
		if len(received) != 1 {
			t.Fatalf("peer %s: expected 1 draw, got %d", peer, len(received))
		}
		if !reflect.DeepEqual(received[0].payload[0], stroke) {
			t.Errorf("peer %s: payload = %v, want %v", peer, received[0].payload[0], stroke)
		}
	}
	if echoed := transport.sentTo("conn-a", "draw"); len(echoed) != 0 {
		t.Errorf("sender received its own stroke back: %v", echoed)
	}
}

func TestWhiteboard_UnknownRoomIsNoop(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventClear, "conn-a", []any{map[string]any{"roomId": "nope"}})

	if len(transport.emissions) != 0 {
		t.Errorf("broadcast to unknown room emitted %v", transport.emissions)
	}
}

func TestMalformedPayloadsDroppedSilently(t *testing.T) {
	r, _, transport := newTestRelay()

	r.Dispatch(EventGetDocument, "conn-a", nil)
	r.Dispatch(EventGetDocument, "conn-a", []any{42})
	r.Dispatch(EventSendChanges, "conn-a", nil)
	r.Dispatch(EventJoinRoom, "conn-a", []any{map[string]any{}})
	r.Dispatch(EventJoinRoom, "conn-a", []any{"not-a-map"})
	r.Dispatch(EventSignal, "conn-a", []any{map[string]any{"signal": "no target"}})
	r.Dispatch(EventDraw, "conn-a", []any{map[string]any{"x": float64(1)}})

	if len(transport.emissions) != 0 {
		t.Errorf("malformed payloads produced emissions: %v", transport.emissions)
	}
}
