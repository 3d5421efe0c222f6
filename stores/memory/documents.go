package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
)

type documentStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
	rooms     map[string]int64
}

func NewDocumentStore() *documentStore {
	return &documentStore{
		documents: make(map[string]core.Document),
		rooms:     make(map[string]int64),
	}
}

func (s *documentStore) Find(ctx context.Context, docID string) (*core.Document, error) {
	log := logrus.WithField("document_id", docID)

	s.mu.RLock()
	doc, ok := s.documents[docID]
	s.mu.RUnlock()

	if !ok {
		log.Warn("document with specified ID not found")
		return nil, fmt.Errorf("document %s: %w", docID, core.ErrNotFound)
	}

	log.Debug("document retrieved")
	return &doc, nil
}

func (s *documentStore) Create(ctx context.Context, ownerID string) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UTC()

	s.mu.Lock()
	s.documents[id] = core.Document{
		DocID:         id,
		Title:         "Untitled",
		OwnerID:       ownerID,
		Collaborators: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"owner_id":    ownerID,
	}).Info("document created")

	return id, nil
}

func (s *documentStore) Save(ctx context.Context, docID, ownerID string, fields core.SaveFields) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[docID]
	if !ok {
		// An explicit save of an unknown id creates the document with the
		// caller as owner.
		doc = core.Document{
			DocID:         docID,
			OwnerID:       ownerID,
			Collaborators: []string{},
			CreatedAt:     now,
		}
	}

	applyFields(&doc, fields)
	doc.UpdatedAt = now
	s.documents[docID] = doc

	logrus.WithField("document_id", docID).Info("document saved")
	return nil
}

func (s *documentStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.Document, 0)
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].DocID < docs[j].DocID
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})

	return docs, nil
}

func (s *documentStore) AddCollaborator(ctx context.Context, docID, collaboratorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[docID]
	if !ok {
		return fmt.Errorf("document %s: %w", docID, core.ErrNotFound)
	}

	for _, c := range doc.Collaborators {
		if c == collaboratorID {
			return nil
		}
	}
	doc.Collaborators = append(doc.Collaborators, collaboratorID)
	doc.UpdatedAt = time.Now().UTC()
	s.documents[docID] = doc

	logrus.WithFields(logrus.Fields{
		"document_id":     docID,
		"collaborator_id": collaboratorID,
	}).Info("collaborator added")
	return nil
}

func (s *documentStore) TouchRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[roomID] = time.Now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *documentStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.Room, 0, len(s.rooms))
	for id, last := range s.rooms {
		rooms = append(rooms, core.Room{ID: id, LastActive: last})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActive == rooms[j].LastActive {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastActive > rooms[j].LastActive
	})

	return rooms, nil
}

func applyFields(doc *core.Document, fields core.SaveFields) {
	if fields.Title != nil {
		doc.Title = *fields.Title
	}
	if fields.Category != nil {
		doc.Category = *fields.Category
	}
	if fields.Content != nil {
		doc.Content = *fields.Content
	}
}
