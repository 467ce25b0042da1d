package relay

import (
	"context"
	"encoding/json"
	"errors"

	"studyhall/core"

	"github.com/sirupsen/logrus"
)

// Transport delivers an event to a single connection. The Socket.IO server
// implements it; tests substitute a recorder.
type Transport interface {
	ToConnection(conn ConnID, event string, payload ...any) error
}

// defaultDocument is the payload handed to clients opening a document id
// the store has never seen: the JSON encoding of an empty string.
var defaultDocument = []byte(`""`)

// Relay fans out collaboration events to room peers and bridges document
// rooms to the persistence layer. Persistence is best-effort: saves are not
// retried and no write acknowledgement goes back to the sender, so a
// briefly unavailable store loses that one write. Failures never reach room
// peers; live relay and persistence fail independently.
type Relay struct {
	registry  *Registry
	store     core.DocumentStore
	transport Transport
}

// New creates a relay over the given registry, document store and
// transport.
func New(registry *Registry, store core.DocumentStore, transport Transport) *Relay {
	return &Relay{
		registry:  registry,
		store:     store,
		transport: transport,
	}
}

// Registry exposes the session registry, for presence endpoints.
func (r *Relay) Registry() *Registry { return r.registry }

type eventHandler func(*Relay, ConnID, []any)

// handlerTable is the single dispatch point for inbound events. Whiteboard
// kinds share one handler parameterized by kind.
var handlerTable = map[EventKind]eventHandler{
	EventGetDocument:     (*Relay).handleGetDocument,
	EventSendChanges:     (*Relay).handleSendChanges,
	EventSaveDocument:    (*Relay).handleSaveDocument,
	EventJoinRoom:        (*Relay).handleJoinRoom,
	EventSignal:          signalHandler(EventSignal),
	EventSendingSignal:   signalHandler(EventSendingSignal),
	EventReturningSignal: signalHandler(EventReturningSignal),
	EventDraw:            whiteboardHandler(EventDraw),
	EventShape:           whiteboardHandler(EventShape),
	EventText:            whiteboardHandler(EventText),
	EventNewItem:         whiteboardHandler(EventNewItem),
	EventUpdateItem:      whiteboardHandler(EventUpdateItem),
	EventUndo:            whiteboardHandler(EventUndo),
	EventClear:           whiteboardHandler(EventClear),
}

// Dispatch routes one inbound event to its handler. Handlers isolate
// failures to the single event being processed; a malformed or failing
// event never takes the process down.
func (r *Relay) Dispatch(kind EventKind, conn ConnID, args []any) {
	h, ok := handlerTable[kind]
	if !ok {
		return
	}
	h(r, conn, args)
}

// HandleDisconnect removes the connection from every room it had joined and
// sends each room's survivors one presence update. Disconnect always
// performs full cleanup; no explicit leave is required first.
func (r *Relay) HandleDisconnect(conn ConnID) {
	affected := r.registry.LeaveAll(conn)
	for _, ref := range affected {
		r.emitUserCount(ref.ID)
	}
	if len(affected) > 0 {
		logrus.WithFields(logrus.Fields{
			"conn":  conn,
			"rooms": len(affected),
		}).Debug("Connection disconnected, membership cleaned up")
	}
}

func (r *Relay) handleGetDocument(conn ConnID, args []any) {
	docID, ok := argString(args, 0)
	if !ok || docID == "" {
		dropMalformed(EventGetDocument, conn)
		return
	}
	log := logrus.WithFields(logrus.Fields{"conn": conn, "document_id": docID})

	if _, err := r.registry.Join(conn, docID, RoomDocument); err != nil {
		// Document rooms are uncapped; Join cannot fail here.
		log.WithError(err).Warn("Failed to join document room")
		return
	}

	ctx := context.Background()
	doc, err := r.store.FindID(ctx, docID)
	if errors.Is(err, core.ErrDocumentNotFound) {
		doc = &core.Document{ID: docID, Data: defaultDocument}
		if createErr := r.store.Create(ctx, doc); createErr != nil {
			log.WithError(createErr).Error("Failed to create document with default payload")
		}
		err = nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to load document")
		return
	}

	if sendErr := r.transport.ToConnection(conn, evLoadDocument, decodePayload(doc.Data)); sendErr != nil {
		log.WithError(sendErr).Warn("Failed to deliver document to client")
	}
}

func (r *Relay) handleSendChanges(conn ConnID, args []any) {
	if len(args) == 0 {
		dropMalformed(EventSendChanges, conn)
		return
	}
	delta := args[0]
	for _, docID := range r.registry.Rooms(conn, RoomDocument) {
		r.broadcast(conn, docID, evReceiveChanges, delta)
	}
}

func (r *Relay) handleSaveDocument(conn ConnID, args []any) {
	if len(args) == 0 {
		dropMalformed(EventSaveDocument, conn)
		return
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		logrus.WithField("conn", conn).WithError(err).Warn("Unencodable save-document payload dropped")
		return
	}
	for _, docID := range r.registry.Rooms(conn, RoomDocument) {
		if saveErr := r.store.Save(context.Background(), docID, data); saveErr != nil {
			// Best-effort: logged, not retried, not surfaced to peers.
			logrus.WithFields(logrus.Fields{
				"conn":        conn,
				"document_id": docID,
			}).WithError(saveErr).Error("Failed to persist document")
		}
	}
}

func (r *Relay) handleJoinRoom(conn ConnID, args []any) {
	payload, ok := argMap(args, 0)
	if !ok {
		dropMalformed(EventJoinRoom, conn)
		return
	}
	roomID, _ := payload["roomId"].(string)
	if roomID == "" {
		dropMalformed(EventJoinRoom, conn)
		return
	}

	kind := RoomWhiteboard
	if k, _ := payload["kind"].(string); k == "call" {
		kind = RoomCall
	}

	_, err := r.registry.Join(conn, roomID, kind)
	if errors.Is(err, ErrRoomFull) {
		logrus.WithFields(logrus.Fields{"conn": conn, "room": roomID}).Info("Join rejected, room at capacity")
		if sendErr := r.transport.ToConnection(conn, evRoomFull, roomID); sendErr != nil {
			logrus.WithField("conn", conn).WithError(sendErr).Warn("Failed to deliver room-full notice")
		}
		return
	}
	r.emitUserCount(roomID)
}

func signalHandler(kind EventKind) eventHandler {
	return func(r *Relay, conn ConnID, args []any) {
		r.handleSignal(kind, conn, args)
	}
}

// handleSignal forwards a WebRTC handshake envelope point-to-point. The
// envelope is transient; it exists only for this one relay hop.
func (r *Relay) handleSignal(kind EventKind, conn ConnID, args []any) {
	payload, ok := argMap(args, 0)
	if !ok {
		dropMalformed(kind, conn)
		return
	}
	target, _ := payload["to"].(string)
	if target == "" {
		target, _ = payload["target"].(string)
	}
	if target == "" {
		dropMalformed(kind, conn)
		return
	}
	if _, present := payload["from"]; !present {
		payload["from"] = string(conn)
	}
	if err := r.transport.ToConnection(ConnID(target), kind.WireName(), payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"conn":   conn,
			"target": target,
			"event":  kind.WireName(),
		}).WithError(err).Warn("Failed to forward signaling message")
	}
}

func whiteboardHandler(kind EventKind) eventHandler {
	return func(r *Relay, conn ConnID, args []any) {
		r.handleWhiteboard(kind, conn, args)
	}
}

// handleWhiteboard rebroadcasts a drawing event to the other members of the
// room named in its payload, under the same event name.
func (r *Relay) handleWhiteboard(kind EventKind, conn ConnID, args []any) {
	payload, ok := argMap(args, 0)
	if !ok {
		dropMalformed(kind, conn)
		return
	}
	roomID, _ := payload["roomId"].(string)
	if roomID == "" {
		dropMalformed(kind, conn)
		return
	}
	r.broadcast(conn, roomID, kind.WireName(), args...)
}

// broadcast delivers an event to every member of the room except the
// sender. Unknown rooms are a silent no-op. Ordering is per-sender only;
// concurrent senders are not serialized against each other.
func (r *Relay) broadcast(sender ConnID, roomID, event string, payload ...any) {
	for _, member := range r.registry.Members(roomID) {
		if member == sender {
			continue
		}
		if err := r.transport.ToConnection(member, event, payload...); err != nil {
			logrus.WithFields(logrus.Fields{
				"room":  roomID,
				"conn":  member,
				"event": event,
			}).WithError(err).Warn("Failed to deliver event to room member")
		}
	}
}

// emitUserCount sends the room's current presence count to every member.
func (r *Relay) emitUserCount(roomID string) {
	count := r.registry.Count(roomID)
	for _, member := range r.registry.Members(roomID) {
		if err := r.transport.ToConnection(member, evUserCount, count); err != nil {
			logrus.WithFields(logrus.Fields{
				"room": roomID,
				"conn": member,
			}).WithError(err).Warn("Failed to deliver presence update")
		}
	}
}

// decodePayload turns a stored document blob back into the value that was
// saved. Blobs predating JSON encoding come back as raw strings.
func decodePayload(data []byte) any {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return string(data)
	}
	return payload
}

func argString(args []any, i int) (string, bool) {
	if len(args) <= i {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

func argMap(args []any, i int) (map[string]any, bool) {
	if len(args) <= i {
		return nil, false
	}
	m, ok := args[i].(map[string]any)
	return m, ok
}

func dropMalformed(kind EventKind, conn ConnID) {
	logrus.WithFields(logrus.Fields{
		"conn":  conn,
		"event": kind.WireName(),
	}).Debug("Malformed payload dropped")
}
