package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
)

type documentStore struct {
	db *sql.DB
}

func NewDocumentStore(dataSourceName string) *documentStore {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	documentsTable := `CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		collaborators TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(documentsTable); err != nil {
		stdlog.Fatal(err)
	}

	activityTable := `CREATE TABLE IF NOT EXISTS room_activity (
		room_id TEXT PRIMARY KEY,
		last_active INTEGER NOT NULL
	);`
	if _, err = db.Exec(activityTable); err != nil {
		stdlog.Fatal(err)
	}

	return &documentStore{db}
}

func (s *documentStore) Find(ctx context.Context, docID string) (*core.Document, error) {
	log := logrus.WithField("document_id", docID)

	row := s.db.QueryRowContext(ctx,
		`SELECT doc_id, title, category, content, owner_id, collaborators, created_at, updated_at
		 FROM documents WHERE doc_id = ?`, docID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("document with specified ID not found")
			return nil, fmt.Errorf("document %s: %w", docID, core.ErrNotFound)
		}
		log.WithError(err).Error("failed to retrieve document")
		return nil, err
	}

	log.Debug("document retrieved")
	return doc, nil
}

func (s *documentStore) Create(ctx context.Context, ownerID string) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UTC()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"owner_id":    ownerID,
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, title, category, content, owner_id, collaborators, created_at, updated_at)
		 VALUES (?, 'Untitled', '', '', ?, '', ?, ?)`,
		id, ownerID, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		log.WithError(err).Error("failed to create document")
		return "", err
	}

	log.Info("document created")
	return id, nil
}

func (s *documentStore) Save(ctx context.Context, docID, ownerID string, fields core.SaveFields) error {
	now := time.Now().UTC()
	log := logrus.WithField("document_id", docID)

	doc, err := s.Find(ctx, docID)
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, title, category, content, owner_id, collaborators, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET
		   title = excluded.title,
		   category = excluded.category,
		   content = excluded.content,
		   updated_at = excluded.updated_at`,
		doc.DocID, doc.Title, doc.Category, doc.Content, doc.OwnerID,
		joinCollaborators(doc.Collaborators), doc.CreatedAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		log.WithError(err).Error("failed to save document")
		return err
	}

	log.Info("document saved")
	return nil
}

func (s *documentStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, title, category, content, owner_id, collaborators, created_at, updated_at
		 FROM documents WHERE owner_id = ? ORDER BY updated_at DESC, doc_id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]core.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *documentStore) AddCollaborator(ctx context.Context, docID, collaboratorID string) error {
	doc, err := s.Find(ctx, docID)
	if err != nil {
		return err
	}

	for _, c := range doc.Collaborators {
		if c == collaboratorID {
			return nil
		}
	}
	doc.Collaborators = append(doc.Collaborators, collaboratorID)

	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET collaborators = ?, updated_at = ? WHERE doc_id = ?`,
		joinCollaborators(doc.Collaborators), time.Now().UTC().UnixMilli(), docID)
	if err != nil {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_activity (room_id, last_active) VALUES (?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET last_active = excluded.last_active`,
		roomID, time.Now().UnixMilli())
	return err
}

func (s *documentStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, last_active FROM room_activity ORDER BY last_active DESC, room_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]core.Room, 0)
	for rows.Next() {
		var room core.Room
		if err := rows.Scan(&room.ID, &room.LastActive); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*core.Document, error) {
	var (
		doc           core.Document
		collaborators string
		createdAt     int64
		updatedAt     int64
	)
	err := row.Scan(&doc.DocID, &doc.Title, &doc.Category, &doc.Content,
		&doc.OwnerID, &collaborators, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	doc.Collaborators = splitCollaborators(collaborators)
	doc.CreatedAt = time.UnixMilli(createdAt).UTC()
	doc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &doc, nil
}

func joinCollaborators(collaborators []string) string {
	return strings.Join(collaborators, ",")
}

func splitCollaborators(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}
