package documents

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
	"collabdocs-server/middleware"
)

type (
	CreateResponse struct {
		DocID string `json:"docId"`
	}

	SaveRequest struct {
		Title    *string `json:"title"`
		Category *string `json:"category"`
		Content  *string `json:"content"`
	}

	InviteRequest struct {
		CollaboratorID string `json:"collaboratorId"`
	}

	errResponse struct {
		Message string `json:"message"`
	}
)

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errResponse{Message: message})
}

// HandleCreate creates an empty document owned by the caller.
func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		id, err := store.Create(r.Context(), identity.UserID)
		if err != nil {
			logrus.WithError(err).Error("failed to create document")
			writeError(w, r, http.StatusInternalServerError, "failed to create document")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateResponse{DocID: id})
	}
}

// HandleGet returns the full document. Reads are open: the editor loads
// content before any identity is attached, as the reference system does.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docId")

		doc, err := store.Find(r.Context(), docID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "document not found")
				return
			}
			logrus.WithField("document_id", docID).WithError(err).Error("failed to retrieve document")
			writeError(w, r, http.StatusInternalServerError, "failed to retrieve document")
			return
		}

		render.JSON(w, r, doc)
	}
}

// HandleSave persists an explicit save. The caller must be the owner or a
// listed collaborator; saving an unknown id creates the document with the
// caller as owner.
func HandleSave(store core.DocumentStore, auth core.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		docID := chi.URLParam(r, "docId")

		var req SaveRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == nil && req.Category == nil && req.Content == nil {
			writeError(w, r, http.StatusBadRequest, "nothing to save")
			return
		}

		doc, err := store.Find(r.Context(), docID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			logrus.WithField("document_id", docID).WithError(err).Error("failed to retrieve document")
			writeError(w, r, http.StatusInternalServerError, "failed to save document")
			return
		}

		if doc != nil && !auth.CanEdit(identity, doc) {
			writeError(w, r, http.StatusForbidden, "no permission for this document")
			return
		}

		fields := core.SaveFields{Title: req.Title, Category: req.Category, Content: req.Content}
		if err := store.Save(r.Context(), docID, identity.UserID, fields); err != nil {
			logrus.WithField("document_id", docID).WithError(err).Error("failed to save document")
			writeError(w, r, http.StatusInternalServerError, "failed to save document")
			return
		}

		render.JSON(w, r, map[string]string{"message": "document saved"})
	}
}

// HandleList returns the caller's documents, most recently updated first.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		docs, err := store.ListByOwner(r.Context(), identity.UserID)
		if err != nil {
			logrus.WithError(err).Error("failed to list documents")
			writeError(w, r, http.StatusInternalServerError, "failed to list documents")
			return
		}

		render.JSON(w, r, docs)
	}
}

// HandleGetCollaborators returns the document's collaborator ids.
func HandleGetCollaborators(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docId")

		doc, err := store.Find(r.Context(), docID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "document not found")
				return
			}
			logrus.WithField("document_id", docID).WithError(err).Error("failed to retrieve document")
			writeError(w, r, http.StatusInternalServerError, "failed to retrieve document")
			return
		}

		render.JSON(w, r, doc.Collaborators)
	}
}

// HandleInvite adds a collaborator to the document. Owner only. Outbound
// notification of the invitee is out of scope.
func HandleInvite(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		docID := chi.URLParam(r, "docId")

		var req InviteRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.CollaboratorID == "" {
			writeError(w, r, http.StatusBadRequest, "collaboratorId is required")
			return
		}

		doc, err := store.Find(r.Context(), docID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "document not found")
				return
			}
			logrus.WithField("document_id", docID).WithError(err).Error("failed to retrieve document")
			writeError(w, r, http.StatusInternalServerError, "failed to retrieve document")
			return
		}

		if doc.OwnerID != identity.UserID {
			writeError(w, r, http.StatusForbidden, "only the owner can invite collaborators")
			return
		}

		if err := store.AddCollaborator(r.Context(), docID, req.CollaboratorID); err != nil {
			logrus.WithField("document_id", docID).WithError(err).Error("failed to add collaborator")
			writeError(w, r, http.StatusInternalServerError, "failed to add collaborator")
			return
		}

		render.JSON(w, r, map[string]string{"message": "collaborator invited"})
	}
}
