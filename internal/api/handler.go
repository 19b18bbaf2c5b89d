// Package api exposes the session, space, and chat operations over HTTP and
// MCP. Every route is a synchronous request/response against one session.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docspace/internal/registry"
	"docspace/internal/session"
	"docspace/internal/store"
)

const maxRequestBodySize = 50 << 20 // 50MB, uploads carry base64 PDFs

// Deps holds what the handlers need.
type Deps struct {
	Session *session.Session
	Store   *store.Store
	Token   string
}

// NewHandler returns the HTTP API for one interactive session.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/session", handleSession(deps))
		r.Get("/spaces", handleListSpaces(deps))
		r.Post("/spaces", handleCreateSpace(deps))
		r.Post("/spaces/{name}/activate", handleActivateSpace(deps))
		r.Delete("/spaces/{name}", handleDeleteSpace(deps))
		r.Post("/chat", handleChat(deps))
		r.Get("/transcript", handleTranscript(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type sessionRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func handleSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		defer r.Body.Close()

		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := deps.Session.Authenticate(req.Name, req.Email); err != nil {
			writeOpError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"session_id": deps.Session.ID(),
			"status":     "authenticated",
		})
	}
}

// spaceView is the wire shape of one space.
type spaceView struct {
	Description     string            `json:"description"`
	PrimaryCategory string            `json:"primary_category"`
	Files           map[string]string `json:"files"`
	CreatedAt       time.Time         `json:"created_at"`
	Active          bool              `json:"active"`
}

func viewOf(sp *registry.Space, active bool) spaceView {
	return spaceView{
		Description:     sp.Description,
		PrimaryCategory: sp.PrimaryCategory,
		Files:           sp.FileCategories,
		CreatedAt:       sp.CreatedAt,
		Active:          active,
	}
}

func handleListSpaces(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// ?email= lists any user's spaces straight from disk, no session
		// needed. Without it, the current session's catalog is returned.
		if email := r.URL.Query().Get("email"); email != "" {
			spaces, err := registry.UserSpaces(deps.Store, email)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "listing spaces: %v", err)
				return
			}
			views := make([]spaceView, 0, len(spaces))
			for desc, meta := range spaces {
				views = append(views, spaceView{
					Description:     desc,
					PrimaryCategory: meta.PrimaryCategory,
					Files:           meta.FileCategories,
					CreatedAt:       meta.CreatedAt,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(views)
			return
		}

		if !deps.Session.Authenticated() {
			writeOpError(w, session.ErrNotAuthenticated)
			return
		}
		active := deps.Session.ActiveSpace()
		views := make([]spaceView, 0)
		for _, sp := range deps.Session.Spaces() {
			views = append(views, viewOf(sp, active != nil && sp.Description == active.Description))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

type fileUpload struct {
	Name    string `json:"name"`
	Content string `json:"content"` // base64-encoded file bytes
}

type createSpaceRequest struct {
	Description string       `json:"description"`
	Files       []fileUpload `json:"files"`
}

func handleCreateSpace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createSpaceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		docs := make([]registry.Document, 0, len(req.Files))
		for _, f := range req.Files {
			data, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content for %q", f.Name)
				return
			}
			docs = append(docs, registry.Document{Name: f.Name, Data: data})
		}

		sp, err := deps.Session.CreateSpace(r.Context(), req.Description, docs)
		if err != nil {
			writeOpError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(viewOf(sp, true))
	}
}

func handleActivateSpace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		sp, err := deps.Session.SwitchSpace(name)
		if err != nil {
			writeOpError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewOf(sp, true))
	}
}

func handleDeleteSpace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		if err := deps.Session.DeleteSpace(name); err != nil {
			writeOpError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		answer, err := deps.Session.Chat(r.Context(), req.Message)
		if err != nil {
			writeOpError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"answer": answer})
	}
}

func handleTranscript(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Session.Authenticated() {
			writeOpError(w, session.ErrNotAuthenticated)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deps.Session.Transcript())
	}
}

// writeOpError maps operation errors to HTTP status codes. Validation
// failures are client errors; everything unexpected is a 500.
func writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, registry.ErrNoSession):
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
	case errors.Is(err, session.ErrEmptyIdentity),
		errors.Is(err, registry.ErrEmptyDescription),
		errors.Is(err, registry.ErrNoValidFiles),
		errors.Is(err, session.ErrNoActiveSpace):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, registry.ErrDuplicateSpace):
		httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
	case errors.Is(err, registry.ErrSpaceNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
