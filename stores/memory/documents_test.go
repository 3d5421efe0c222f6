package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"collabdocs-server/core"
)

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	if store == nil {
		t.Fatal("NewDocumentStore() returned nil")
	}
}

func TestCreate_Success(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if id == "" {
		t.Error("Create() returned empty ID")
	}

	// Verify the ID is a valid ULID format (26 characters)
	if len(id) != 26 {
		t.Errorf("Create() returned invalid ID length: got %d, want 26", len(id))
	}

	doc, err := store.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find() after Create() failed: %v", err)
	}
	if doc.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want owner-1", doc.OwnerID)
	}
	if doc.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", doc.Title)
	}
	if doc.Content != "" {
		t.Errorf("new document should have empty content, got %q", doc.Content)
	}
}

func TestFind_NotFound(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.Find(context.Background(), "nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Find() error = %v, want ErrNotFound", err)
	}
}

func TestSave_UpdatesFields(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	id, _ := store.Create(ctx, "owner-1")

	title := "My Notes"
	content := "hello world"
	err := store.Save(ctx, id, "owner-1", core.SaveFields{Title: &title, Content: &content})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	doc, _ := store.Find(ctx, id)
	if doc.Title != "My Notes" || doc.Content != "hello world" {
		t.Errorf("Save() did not apply fields: %+v", doc)
	}
	if doc.Category != "" {
		t.Errorf("Save() touched a field it was not given: category = %q", doc.Category)
	}
}

func TestSave_CreatesUnknownDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	content := "fresh"
	if err := store.Save(ctx, "doc-x", "owner-2", core.SaveFields{Content: &content}); err != nil {
		t.Fatalf("Save() of unknown id failed: %v", err)
	}

	doc, err := store.Find(ctx, "doc-x")
	if err != nil {
		t.Fatalf("Find() after implicit create failed: %v", err)
	}
	if doc.OwnerID != "owner-2" {
		t.Errorf("implicit create set owner %q, want owner-2", doc.OwnerID)
	}
	if doc.Content != "fresh" {
		t.Errorf("content = %q, want fresh", doc.Content)
	}
}

func TestListByOwner_FiltersAndOrders(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	first, _ := store.Create(ctx, "owner-1")
	second, _ := store.Create(ctx, "owner-1")
	store.Create(ctx, "someone-else")

	// Touch the first document so it becomes the most recently updated.
	content := "bump"
	if err := store.Save(ctx, first, "owner-1", core.SaveFields{Content: &content}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	docs, err := store.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListByOwner() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].DocID != first {
		t.Errorf("most recently updated document should come first, got %q then %q (second=%q)",
			docs[0].DocID, docs[1].DocID, second)
	}
}

func TestAddCollaborator_NoDuplicates(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	id, _ := store.Create(ctx, "owner-1")

	if err := store.AddCollaborator(ctx, id, "friend-1"); err != nil {
		t.Fatalf("AddCollaborator() failed: %v", err)
	}
	if err := store.AddCollaborator(ctx, id, "friend-1"); err != nil {
		t.Fatalf("duplicate AddCollaborator() failed: %v", err)
	}

	doc, _ := store.Find(ctx, id)
	if len(doc.Collaborators) != 1 || doc.Collaborators[0] != "friend-1" {
		t.Errorf("Collaborators = %v, want [friend-1]", doc.Collaborators)
	}
}

func TestAddCollaborator_NotFound(t *testing.T) {
	store := NewDocumentStore()

	err := store.AddCollaborator(context.Background(), "nonexistent", "friend-1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("AddCollaborator() error = %v, want ErrNotFound", err)
	}
}

func TestTouchRoom_And_ListRooms(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	if err := store.TouchRoom(ctx, ""); err == nil {
		t.Error("TouchRoom() with empty id should fail")
	}

	if err := store.TouchRoom(ctx, "doc-1"); err != nil {
		t.Fatalf("TouchRoom() failed: %v", err)
	}

	rooms, err := store.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "doc-1" {
		t.Errorf("ListRooms() = %v, want [doc-1]", rooms)
	}
	if rooms[0].LastActive == 0 {
		t.Error("TouchRoom() did not record a timestamp")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Create(ctx, "owner-1")
			if err != nil {
				t.Errorf("Create() failed: %v", err)
				return
			}
			content := "x"
			if err := store.Save(ctx, id, "owner-1", core.SaveFields{Content: &content}); err != nil {
				t.Errorf("Save() failed: %v", err)
			}
			store.TouchRoom(ctx, id)
		}()
	}
	wg.Wait()

	docs, err := store.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListByOwner() failed: %v", err)
	}
	if len(docs) != workers {
		t.Errorf("expected %d documents, got %d", workers, len(docs))
	}
}
