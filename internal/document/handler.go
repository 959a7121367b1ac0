package handler

import (
	"encoding/json"
	"net/http"

	"naskahsync/internal/access"
	"naskahsync/internal/document/model"
	"naskahsync/internal/document/service"
	"naskahsync/middleware"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req model.CreateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.CreateDocument(r.Context(), user, req)
	if err != nil {
		writeError(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.CreateDocResponse{DocID: doc.ID})
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.ListDocuments(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.GetDocument(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SaveDocument replaces the content. Connected editors receive the change
// the same way as one made over the socket.
func (h *DocumentHandler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req model.ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Content) == 0 || string(req.Content) == "null" {
		http.Error(w, "Content cannot be empty", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.UpdateContent(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, "save document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) RenameDocument(w http.ResponseWriter, r *http.Request) {
	var req model.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.Rename(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, "rename document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) ShareDocument(w http.ResponseWriter, r *http.Request) {
	var req model.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.AddShare(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Email)
	if err != nil {
		writeError(w, "share document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Service.ChatHistory(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get chat", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *DocumentHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.Service.SendChat(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Body)
	if err != nil {
		writeError(w, "send chat", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Typing records activity for clients that are not holding a socket open.
func (h *DocumentHandler) Typing(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Touch(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, "typing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Export(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "export document", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func currentUser(r *http.Request) access.User {
	user, _ := middleware.UserFromContext(r.Context())
	return user
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: Failed to encode response: %v", err)
	}
}

// writeError maps a service error onto a status. Missing and forbidden
// documents produce the same response.
func writeError(w http.ResponseWriter, op string, err error) {
	status, msg := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: Failed to %s: %v", op, err)
	}
	http.Error(w, msg, status)
}
