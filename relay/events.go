package relay

// EventKind enumerates every client-to-server event the relay understands.
// Dispatch goes through a single typed handler table keyed by kind; the
// transport binding maps wire names onto kinds exactly once, at
// registration time.
type EventKind int

const (
	EventGetDocument EventKind = iota
	EventSendChanges
	EventSaveDocument
	EventJoinRoom
	EventSignal
	EventSendingSignal
	EventReturningSignal
	EventDraw
	EventShape
	EventText
	EventNewItem
	EventUpdateItem
	EventUndo
	EventClear
)

// eventNames maps each kind to its wire name. Whiteboard events are
// rebroadcast under the same name they arrive with.
var eventNames = map[EventKind]string{
	EventGetDocument:     "get-document",
	EventSendChanges:     "send-changes",
	EventSaveDocument:    "save-document",
	EventJoinRoom:        "joinRoom",
	EventSignal:          "signal",
	EventSendingSignal:   "sending signal",
	EventReturningSignal: "returning signal",
	EventDraw:            "draw",
	EventShape:           "shape",
	EventText:            "text",
	EventNewItem:         "newItem",
	EventUpdateItem:      "updateItem",
	EventUndo:            "undo",
	EventClear:           "clear",
}

// Server-to-client event names.
const (
	evLoadDocument   = "load-document"
	evReceiveChanges = "receive-changes"
	evUserCount      = "userCount"
	evRoomFull       = "room full"
)

func (k EventKind) WireName() string { return eventNames[k] }
