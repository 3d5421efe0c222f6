package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
)

// documentStore keeps one JSON file per document under basePath. Room
// activity is process-local; a restart forgets it, which is acceptable
// because rooms are rebuilt from live connections anyway.
type documentStore struct {
	basePath string

	mu    sync.Mutex
	rooms map[string]int64
}

func NewDocumentStore(basePath string) *documentStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		stdlog.Fatalf("failed to create base directory: %v", err)
	}
	return &documentStore{
		basePath: basePath,
		rooms:    make(map[string]int64),
	}
}

func (s *documentStore) docPath(docID string) string {
	return filepath.Join(s.basePath, docID+".json")
}

func (s *documentStore) read(docID string) (*core.Document, error) {
	data, err := os.ReadFile(s.docPath(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document %s: %w", docID, core.ErrNotFound)
		}
		return nil, err
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document file %s: %w", docID, err)
	}
	return &doc, nil
}

func (s *documentStore) write(doc *core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(s.docPath(doc.DocID), data, 0644)
}

func (s *documentStore) Find(ctx context.Context, docID string) (*core.Document, error) {
	log := logrus.WithField("document_id", docID)

	doc, err := s.read(docID)
	if err != nil {
		log.WithError(err).Warn("failed to retrieve document")
		return nil, err
	}

	log.Debug("document retrieved")
	return doc, nil
}

func (s *documentStore) Create(ctx context.Context, ownerID string) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UTC()
	doc := core.Document{
		DocID:         id,
		Title:         "Untitled",
		OwnerID:       ownerID,
		Collaborators: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"owner_id":    ownerID,
	})

	if err := s.write(&doc); err != nil {
		log.WithError(err).Error("failed to create document")
		return "", err
	}

	log.Info("document created")
	return id, nil
}

func (s *documentStore) Save(ctx context.Context, docID, ownerID string, fields core.SaveFields) error {
	now := time.Now().UTC()

	doc, err := s.read(docID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		doc = &core.Document{
			DocID:         docID,
			OwnerID:       ownerID,
			Collaborators: []string{},
			CreatedAt:     now,
		}
	}

	if fields.Title != nil {
		doc.Title = *fields.Title
	}
	if fields.Category != nil {
		doc.Category = *fields.Category
	}
	if fields.Content != nil {
		doc.Content = *fields.Content
	}
	doc.UpdatedAt = now

	if err := s.write(doc); err != nil {
		logrus.WithField("document_id", docID).WithError(err).Error("failed to save document")
		return err
	}

	logrus.WithField("document_id", docID).Info("document saved")
	return nil
}

func (s *documentStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Document, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	docs := make([]core.Document, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		docID := strings.TrimSuffix(entry.Name(), ".json")
		doc, err := s.read(docID)
		if err != nil {
			logrus.WithField("document_id", docID).WithError(err).Warn("skipping unreadable document")
			continue
		}
		if doc.OwnerID == ownerID {
			docs = append(docs, *doc)
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
	doc, err := s.read(docID)
	if err != nil {
		return err
	}

	for _, c := range doc.Collaborators {
		if c == collaboratorID {
			return nil
		}
	}
	doc.Collaborators = append(doc.Collaborators, collaboratorID)
	doc.UpdatedAt = time.Now().UTC()

	if err := s.write(doc); err != nil {
		return err
	}

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
	s.mu.Lock()
	defer s.mu.Unlock()

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
