package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a document id has no record.
var ErrNotFound = errors.New("document not found")

type (
	// Document is the persisted state of one collaborative text document.
	Document struct {
		DocID         string    `json:"docId"`
		Title         string    `json:"title"`
		Category      string    `json:"category,omitempty"`
		Content       string    `json:"content"`
		OwnerID       string    `json:"ownerId"`
		Collaborators []string  `json:"collaborators"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}

	// Identity is the human-readable identity a client presents at join
	// time. Either field may be empty; an all-empty identity is still a
	// valid presence.
	Identity struct {
		UserID string `json:"-"`
		Email  string `json:"email"`
		Name   string `json:"name,omitempty"`
	}

	// SaveFields carries the mutable fields of an explicit save. Nil
	// pointers leave the stored value untouched.
	SaveFields struct {
		Title    *string
		Category *string
		Content  *string
	}

	DocumentStore interface {
		Find(ctx context.Context, docID string) (*Document, error)
		Create(ctx context.Context, ownerID string) (string, error)
		Save(ctx context.Context, docID, ownerID string, fields SaveFields) error
		ListByOwner(ctx context.Context, ownerID string) ([]Document, error)
		AddCollaborator(ctx context.Context, docID, collaboratorID string) error
	}

	// Room is a document id with the last time any connection touched it.
	Room struct {
		ID         string
		LastActive int64
	}

	// RoomActivity records which rooms have seen traffic.
	RoomActivity interface {
		TouchRoom(ctx context.Context, roomID string) error
		ListRooms(ctx context.Context) ([]Room, error)
	}

	// Authorizer decides whether an identity may modify a document.
	Authorizer interface {
		CanEdit(identity Identity, doc *Document) bool
	}
)

// OwnerOrCollaborator allows the document owner and anyone on its
// collaborator list.
type OwnerOrCollaborator struct{}

func (OwnerOrCollaborator) CanEdit(identity Identity, doc *Document) bool {
	if identity.UserID == "" || doc == nil {
		return false
	}
	if doc.OwnerID == identity.UserID {
		return true
	}
	for _, c := range doc.Collaborators {
		if c == identity.UserID {
			return true
		}
	}
	return false
}

// AllowAll admits every identity. The sync gateway runs with this by
// default: the reference system accepts unauthenticated joins.
type AllowAll struct{}

func (AllowAll) CanEdit(Identity, *Document) bool { return true }
