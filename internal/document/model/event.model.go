package model

type EventType string

const (
	EventSnapshot        EventType = "SNAPSHOT"
	EventDocumentUpdated EventType = "DOCUMENT_UPDATED"
	EventChatAppended    EventType = "CHAT_APPENDED"
	EventPresenceChanged EventType = "PRESENCE_CHANGED"
)

// Snapshot is the complete state handed to a new subscriber.
type Snapshot struct {
	Document *Document    `json:"document"`
	Presence []string     `json:"presence"`
	Chat     []ChatMessage `json:"chat"`
}

// ChangeEvent is a committed change to one document. Exactly one of
// Document, Message, Presence or Snapshot is meaningful, selected by Type.
//
// Seq is assigned by the hub and increases by one per published event of a
// document; a snapshot carries the Seq of the last event it already reflects.
type ChangeEvent struct {
	Type       EventType    `json:"type"`
	DocumentID string       `json:"documentId"`
	ActorID    string       `json:"actorId,omitempty"`
	Seq        uint64       `json:"seq"`
	Document   *Document    `json:"document,omitempty"`
	Message    *ChatMessage `json:"message,omitempty"`
	Presence   []string     `json:"presence"`
	Snapshot   *Snapshot    `json:"snapshot,omitempty"`
}

func DocumentUpdated(doc *Document, actorID string) ChangeEvent {
	return ChangeEvent{Type: EventDocumentUpdated, DocumentID: doc.ID, ActorID: actorID, Document: doc}
}

func ChatAppended(msg *ChatMessage) ChangeEvent {
	return ChangeEvent{Type: EventChatAppended, DocumentID: msg.DocumentID, ActorID: msg.SenderID, Message: msg}
}

// PresenceChanged always carries a non-nil slice so an empty set survives
// JSON encoding as [].
func PresenceChanged(docID string, emails []string) ChangeEvent {
	if emails == nil {
		emails = []string{}
	}
	return ChangeEvent{Type: EventPresenceChanged, DocumentID: docID, Presence: emails}
}
