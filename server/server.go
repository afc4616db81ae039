// CLAUDE:SUMMARY API REST chi : projets, documents, sections, sessions de chat, médias, exports.

// Package server exposes the REST API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cahier/assist"
	"github.com/hazyhaar/cahier/auth"
	"github.com/hazyhaar/cahier/docimport"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/store"
)

// Assistant is the LLM surface the chat handlers need. *assist.Client
// implements it; tests substitute a fake.
type Assistant interface {
	Chat(ctx context.Context, system string, messages []assist.Message) (*assist.Reply, error)
	ChatStream(ctx context.Context, system string, messages []assist.Message, onDelta func(string)) (*assist.Reply, error)
	GenerateQuestionnaire(ctx context.Context, projectDesc, docType string) ([]assist.Question, assist.Usage, error)
	SuggestRequirements(ctx context.Context, sectionTitle string, conversation []assist.Message) ([]string, assist.Usage, error)
}

// BlobStore is the object storage surface the media handlers need.
// *blob.Store implements it.
type BlobStore interface {
	ObjectKey(sessionID, filename string) string
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config configures the server.
type Config struct {
	Store         *store.Store
	Importer      *docimport.Importer
	Assistant     Assistant           // nil disables AI endpoints
	Blobs         BlobStore           // nil disables media endpoints
	Events        *observability.EventLogger
	Logger        *slog.Logger
	JWTSecret     string
	TokenTTL      time.Duration
	CookieDomain  string
	SecureCookies bool
	MaxImportSize int64
	MaxMediaSize  int64
}

// Server holds the handler dependencies.
type Server struct {
	store     *store.Store
	importer  *docimport.Importer
	assistant Assistant
	blobs     BlobStore
	events    *observability.EventLogger
	logger    *slog.Logger
	cfg       Config
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Importer == nil {
		cfg.Importer = docimport.New(docimport.Config{
			MaxFileSize: cfg.MaxImportSize,
			Logger:      cfg.Logger,
		})
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Server{
		store:     cfg.Store,
		importer:  cfg.Importer,
		assistant: cfg.Assistant,
		blobs:     cfg.Blobs,
		events:    cfg.Events,
		logger:    cfg.Logger,
		cfg:       cfg,
	}
}

// Router builds the /api route tree. Authentication middleware must already
// have run; every route except /health and the auth endpoints requires a
// valid session.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/auth/me", s.handleMe)

		r.With(auth.RequireAdmin).Get("/users", s.handleListUsers)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Put("/", s.handleUpdateProject)
				r.Delete("/", s.handleDeleteProject)
				r.Get("/members", s.handleListMembers)
				r.Post("/members", s.handleAddMember)
				r.Delete("/members/{userID}", s.handleRemoveMember)
				r.Get("/documents", s.handleListDocuments)
				r.Post("/documents", s.handleCreateDocument)
				r.Post("/documents/import", s.handleImportDocument)
				r.Get("/sessions", s.handleListSessions)
				r.Post("/sessions", s.handleCreateSession)
			})
		})

		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Put("/", s.handleUpdateDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Put("/content", s.handleSaveContent)
			r.Get("/versions", s.handleListVersions)
			r.Get("/versions/{version}", s.handleGetVersion)
			r.Post("/versions/{version}/restore", s.handleRestoreVersion)
			r.Get("/sections", s.handleListSections)
			r.Post("/sections", s.handleCreateSection)
			r.Get("/export/markdown", s.handleExportMarkdown)
			r.Get("/export/html", s.handleExportHTML)
			r.Get("/export/docx", s.handleExportDocx)
		})

		r.Route("/sections/{sectionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSection)
			r.Put("/", s.handleUpdateSection)
			r.Delete("/", s.handleDeleteSection)
			r.Get("/bindings", s.handleListBindings)
			r.Post("/bindings", s.handleCreateBinding)
		})
		r.Delete("/bindings/{bindingID}", s.handleDeactivateBinding)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Put("/", s.handleUpdateSession)
			r.Get("/messages", s.handleListMessages)
			r.Post("/chat", s.handleChat)
			r.Post("/chat/stream", s.handleChatStream)
			r.Post("/questionnaire", s.handleQuestionnaire)
			r.Post("/suggest-requirements", s.handleSuggestRequirements)
			r.Get("/export", s.handleExportSession)
			r.Get("/bindings", s.handleSessionBindings)
			r.Get("/media", s.handleListMedia)
			r.Post("/media", s.handleUploadMedia)
		})
		r.Get("/media/{mediaID}/url", s.handlePresignMedia)
		r.Get("/media/{mediaID}/download", s.handleDownloadMedia)
		r.Delete("/media/{mediaID}", s.handleDeleteMedia)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinels to HTTP codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "ressource introuvable")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "la ressource existe déjà")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version obsolète, rechargez le document")
	default:
		s.logger.Error("store error", "error", err)
		writeError(w, http.StatusInternalServerError, "erreur interne")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "corps de requête invalide")
		return false
	}
	return true
}

// Roles allowed to modify project content.
var writerRoles = map[string]bool{
	store.RoleOwner:    true,
	store.RoleGatherer: true,
}

// Roles allowed to participate in chat sessions.
var chatRoles = map[string]bool{
	store.RoleOwner:    true,
	store.RoleGatherer: true,
	store.RoleClient:   true,
}

// requireMember checks that the authenticated user belongs to the project.
// When allowed is non-nil, the member's role must be in the set. Admins
// bypass membership. Returns the claims, or nil after writing the response.
func (s *Server) requireMember(w http.ResponseWriter, r *http.Request, projectID string, allowed map[string]bool) *auth.Claims {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentification requise")
		return nil
	}
	if claims.IsAdmin {
		return claims
	}
	role, err := s.store.MemberRole(r.Context(), projectID, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusForbidden, "accès refusé à ce projet")
			return nil
		}
		s.writeStoreError(w, err)
		return nil
	}
	if allowed != nil && !allowed[role] {
		writeError(w, http.StatusForbidden, "votre rôle ne permet pas cette action")
		return nil
	}
	return claims
}

// documentAccess loads a document and checks project membership in one step.
func (s *Server) documentAccess(w http.ResponseWriter, r *http.Request, allowed map[string]bool) (*store.Document, *auth.Claims) {
	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeStoreError(w, err)
		return nil, nil
	}
	claims := s.requireMember(w, r, doc.ProjectID, allowed)
	if claims == nil {
		return nil, nil
	}
	return doc, claims
}

// sessionAccess loads a chat session and checks project membership.
func (s *Server) sessionAccess(w http.ResponseWriter, r *http.Request, allowed map[string]bool) (*store.ChatSession, *auth.Claims) {
	session, err := s.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeStoreError(w, err)
		return nil, nil
	}
	claims := s.requireMember(w, r, session.ProjectID, allowed)
	if claims == nil {
		return nil, nil
	}
	return session, claims
}

func (s *Server) logEvent(ctx context.Context, ev observability.BusinessEvent) {
	if s.events != nil {
		s.events.LogEvent(ctx, ev)
	}
}
