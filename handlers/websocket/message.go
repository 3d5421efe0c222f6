package websocket

import (
	"encoding/json"
	"fmt"

	"collabdocs-server/core"
)

// Message types accepted from clients and emitted to them. The protocol is
// a tagged union: any frame whose type is not listed here is dropped.
const (
	TypeJoin   = "join"
	TypeUpdate = "update"
	TypeUsers  = "users"
	TypeInit   = "init"
)

type (
	// ClientMessage is the decoded form of one inbound frame.
	ClientMessage struct {
		Type    string        `json:"type"`
		DocID   string        `json:"docId,omitempty"`
		User    core.Identity `json:"user"`
		Content string        `json:"content,omitempty"`
	}

	// UpdateMessage carries one peer's edit to the rest of the room.
	UpdateMessage struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}

	// UsersMessage is the presence snapshot broadcast on every join and
	// leave.
	UsersMessage struct {
		Type  string          `json:"type"`
		Users []core.Identity `json:"users"`
	}

	// InitMessage seeds the joining client with the persisted document
	// content. Sent to the joiner only, never relayed.
	InitMessage struct {
		Type    string `json:"type"`
		DocID   string `json:"docId"`
		Content string `json:"content"`
	}
)

// decodeClientMessage parses an inbound frame and validates the fields the
// tagged variant requires. It returns an error for anything that must be
// dropped: unparsable JSON, an unknown type, or a missing docId.
func decodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unparsable message: %w", err)
	}

	switch msg.Type {
	case TypeJoin:
		if msg.DocID == "" {
			return nil, fmt.Errorf("join without docId")
		}
	case TypeUpdate:
		if msg.DocID == "" {
			return nil, fmt.Errorf("update without docId")
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}

	return &msg, nil
}

func encodeUpdate(content string) []byte {
	data, _ := json.Marshal(UpdateMessage{Type: TypeUpdate, Content: content})
	return data
}

func encodeUsers(users []core.Identity) []byte {
	data, _ := json.Marshal(UsersMessage{Type: TypeUsers, Users: users})
	return data
}

func encodeInit(docID, content string) []byte {
	data, _ := json.Marshal(InitMessage{Type: TypeInit, DocID: docID, Content: content})
	return data
}
