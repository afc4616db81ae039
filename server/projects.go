package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cahier/auth"
	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/store"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projects, err := s.store.ListProjectsForUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "le nom du projet est requis")
		return
	}

	project := &store.Project{
		ID:          idgen.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     claims.UserID,
		Status:      store.StatusDraft,
	}
	if err := s.store.CreateProject(r.Context(), project); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "project", EntityType: "project", EntityID: project.ID,
		ProjectID: project.ID, UserID: claims.UserID, Action: "create", Success: true,
	})
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, nil) == nil {
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, writerRoles) == nil {
		return
	}
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if req.Name != "" {
		project.Name = strings.TrimSpace(req.Name)
	}
	project.Description = req.Description
	if req.Status != "" {
		project.Status = req.Status
	}
	if err := s.store.UpdateProject(r.Context(), project); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	claims := s.requireMember(w, r, projectID, map[string]bool{store.RoleOwner: true})
	if claims == nil {
		return
	}
	if err := s.store.DeleteProject(r.Context(), projectID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "project", EntityType: "project", EntityID: projectID,
		ProjectID: projectID, UserID: claims.UserID, Action: "delete", Success: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "supprimé"})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, nil) == nil {
		return
	}
	members, err := s.store.ListMembers(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, map[string]bool{store.RoleOwner: true}) == nil {
		return
	}
	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !store.ValidRole(req.Role) || req.Role == store.RoleOwner {
		writeError(w, http.StatusBadRequest, "rôle invalide")
		return
	}
	if _, err := s.store.GetUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "utilisateur inconnu")
			return
		}
		s.writeStoreError(w, err)
		return
	}

	member := &store.ProjectMember{ProjectID: projectID, UserID: req.UserID, Role: req.Role}
	if err := s.store.AddMember(r.Context(), member); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, map[string]bool{store.RoleOwner: true}) == nil {
		return
	}
	err := s.store.RemoveMember(r.Context(), projectID, chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Owners cannot be removed and absent members do not exist; both
			// surface as not found.
			writeError(w, http.StatusNotFound, "membre introuvable ou propriétaire")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retiré"})
}
