package dashboard

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/itemsync"
	"github.com/idilsaglam/itemsync/internal/model"
)

// MessageType tags server to client messages.
type MessageType string

const (
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeError    MessageType = "error"
)

// Client operations.
const (
	OpAdd    = "add"
	OpDelete = "delete"
	OpUpdate = "update"
)

// SnapshotMessage carries the full item list.
type SnapshotMessage struct {
	Type      MessageType  `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Items     []model.Item `json:"items"`
}

// ErrorMessage answers a client request that could not be carried out.
type ErrorMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Error     string      `json:"error"`
}

// ClientMessage is a mutation request sent by a client.
type ClientMessage struct {
	Op          string      `json:"op"`
	ID          string      `json:"id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Item        *model.Item `json:"item,omitempty"`
}

func newSnapshot(items []model.Item) SnapshotMessage {
	if items == nil {
		items = []model.Item{}
	}
	return SnapshotMessage{Type: MessageTypeSnapshot, Timestamp: time.Now(), Items: items}
}

func newError(err error) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Timestamp: time.Now(), Error: err.Error()}
}

// handleMessage validates a client message and submits the mutation it asks for.
func (s *Server) handleMessage(data []byte) (*itemsync.Result, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errs.InvalidInput("malformed message: " + err.Error())
	}

	switch msg.Op {
	case OpAdd:
		if strings.TrimSpace(msg.Title) == "" || strings.TrimSpace(msg.Description) == "" {
			return nil, errs.InvalidInput("add: title and description are required")
		}
		return s.syncer.AddItem(msg.Title, msg.Description), nil
	case OpDelete:
		if msg.ID == "" {
			return nil, errs.MissingID(OpDelete)
		}
		return s.syncer.DeleteItem(msg.ID), nil
	case OpUpdate:
		if msg.Item == nil {
			return nil, errs.InvalidInput("update: item is required")
		}
		return s.syncer.UpdateItem(*msg.Item), nil
	case "":
		return nil, errs.InvalidInput("op is required")
	default:
		return nil, errs.InvalidInput("unknown op " + msg.Op)
	}
}
