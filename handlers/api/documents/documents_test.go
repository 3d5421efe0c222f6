package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"collabdocs-server/core"
	"collabdocs-server/middleware"
	"collabdocs-server/stores/memory"
)

func newTestRouter(store core.DocumentStore) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Identity)
	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", HandleCreate(store))
		r.Get("/", HandleList(store))
		r.Route("/{docId}", func(r chi.Router) {
			r.Get("/", HandleGet(store))
			r.Put("/", HandleSave(store, core.OwnerOrCollaborator{}))
			r.Get("/collaborators", HandleGetCollaborators(store))
			r.Post("/collaborators", HandleInvite(store))
		})
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Email", userID+"@example.com")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate(t *testing.T) {
	router := newTestRouter(memory.NewDocumentStore())

	rec := doRequest(t, router, http.MethodPost, "/api/documents", "owner-1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp CreateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.DocID == "" {
		t.Error("create returned empty docId")
	}
}

func TestHandleCreate_RequiresIdentity(t *testing.T) {
	router := newTestRouter(memory.NewDocumentStore())

	rec := doRequest(t, router, http.MethodPost, "/api/documents", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleGet(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)

	id, _ := store.Create(context.Background(), "owner-1")

	rec := doRequest(t, router, http.MethodGet, "/api/documents/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc core.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if doc.DocID != id {
		t.Errorf("docId = %q, want %q", doc.DocID, id)
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	router := newTestRouter(memory.NewDocumentStore())

	rec := doRequest(t, router, http.MethodGet, "/api/documents/nonexistent", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSave_Owner(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)

	id, _ := store.Create(context.Background(), "owner-1")

	rec := doRequest(t, router, http.MethodPut, "/api/documents/"+id, "owner-1",
		SaveRequest{Content: strPtr("new content"), Title: strPtr("new title")})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	doc, _ := store.Find(context.Background(), id)
	if doc.Content != "new content" || doc.Title != "new title" {
		t.Errorf("save not applied: %+v", doc)
	}
}

func TestHandleSave_Collaborator(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)
	ctx := context.Background()

	id, _ := store.Create(ctx, "owner-1")
	store.AddCollaborator(ctx, id, "friend-1")

	rec := doRequest(t, router, http.MethodPut, "/api/documents/"+id, "friend-1",
		SaveRequest{Content: strPtr("collab edit")})
	if rec.Code != http.StatusOK {
		t.Errorf("collaborator save status = %d, want 200", rec.Code)
	}
}

func TestHandleSave_Forbidden(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)

	id, _ := store.Create(context.Background(), "owner-1")

	rec := doRequest(t, router, http.MethodPut, "/api/documents/"+id, "stranger",
		SaveRequest{Content: strPtr("hostile edit")})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	doc, _ := store.Find(context.Background(), id)
	if doc.Content != "" {
		t.Errorf("forbidden save mutated the document: %q", doc.Content)
	}
}

func TestHandleSave_EmptyBody(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)

	id, _ := store.Create(context.Background(), "owner-1")

	rec := doRequest(t, router, http.MethodPut, "/api/documents/"+id, "owner-1", SaveRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleList(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)
	ctx := context.Background()

	store.Create(ctx, "owner-1")
	store.Create(ctx, "owner-1")
	store.Create(ctx, "someone-else")

	rec := doRequest(t, router, http.MethodGet, "/api/documents", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var docs []core.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}
}

func TestHandleInvite_OwnerOnly(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)

	id, _ := store.Create(context.Background(), "owner-1")

	rec := doRequest(t, router, http.MethodPost, "/api/documents/"+id+"/collaborators",
		"stranger", InviteRequest{CollaboratorID: "friend-1"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger invite status = %d, want 403", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/documents/"+id+"/collaborators",
		"owner-1", InviteRequest{CollaboratorID: "friend-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner invite status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	recList := doRequest(t, router, http.MethodGet, "/api/documents/"+id+"/collaborators", "", nil)
	var collaborators []string
	if err := json.Unmarshal(recList.Body.Bytes(), &collaborators); err != nil {
		t.Fatalf("invalid collaborators body: %v", err)
	}
	if len(collaborators) != 1 || collaborators[0] != "friend-1" {
		t.Errorf("collaborators = %v, want [friend-1]", collaborators)
	}
}

func TestHandleInvite_MissingCollaboratorID(t *testing.T) {
	store := memory.NewDocumentStore()
	router := newTestRouter(store)

	id, _ := store.Create(context.Background(), "owner-1")

	rec := doRequest(t, router, http.MethodPost, "/api/documents/"+id+"/collaborators",
		"owner-1", InviteRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func strPtr(s string) *string { return &s }
