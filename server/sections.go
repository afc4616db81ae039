package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cahier/auth"
	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/store"
)

// sectionNode is one entry of the nested outline returned by ?tree=1.
type sectionNode struct {
	*store.Section
	Children []*sectionNode `json:"children"`
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	sections, err := s.store.ListSections(r.Context(), doc.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if r.URL.Query().Get("tree") != "" {
		writeJSON(w, http.StatusOK, buildSectionTree(sections))
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

// buildSectionTree nests the flat position-ordered list by level. Level jumps
// are tolerated: a section deeper than its predecessor+1 still attaches to
// the nearest shallower ancestor.
func buildSectionTree(sections []*store.Section) []*sectionNode {
	roots := make([]*sectionNode, 0)
	var stack []*sectionNode
	for _, sec := range sections {
		node := &sectionNode{Section: sec, Children: []*sectionNode{}}
		for len(stack) > 0 && stack[len(stack)-1].Level >= sec.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

type sectionRequest struct {
	Number         string `json:"section_number"`
	Title          string `json:"title"`
	Level          int    `json:"level"`
	ParentID       string `json:"parent_id"`
	Status         string `json:"status"`
	ContentPreview string `json:"content_preview"`
	OpenQuestions  string `json:"open_questions"`
	AIGenerated    bool   `json:"ai_generated"`
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.documentAccess(w, r, writerRoles)
	if doc == nil {
		return
	}
	var req sectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "le titre de la section est requis")
		return
	}
	level := req.Level
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}

	sec := &store.Section{
		ID:             idgen.New(),
		DocumentID:     doc.ID,
		Number:         req.Number,
		Title:          strings.TrimSpace(req.Title),
		Level:          level,
		ParentID:       req.ParentID,
		Status:         req.Status,
		NodeID:         idgen.Anchor()(),
		ContentPreview: req.ContentPreview,
		OpenQuestions:  req.OpenQuestions,
		AIGenerated:    req.AIGenerated,
	}
	if err := s.store.CreateSection(r.Context(), sec); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

// sectionAccess loads a section, its document, and checks membership.
func (s *Server) sectionAccess(w http.ResponseWriter, r *http.Request, allowed map[string]bool) (*store.Section, *store.Document, *auth.Claims) {
	sec, err := s.store.GetSection(r.Context(), chi.URLParam(r, "sectionID"))
	if err != nil {
		s.writeStoreError(w, err)
		return nil, nil, nil
	}
	doc, err := s.store.GetDocument(r.Context(), sec.DocumentID)
	if err != nil {
		s.writeStoreError(w, err)
		return nil, nil, nil
	}
	claims := s.requireMember(w, r, doc.ProjectID, allowed)
	if claims == nil {
		return nil, nil, nil
	}
	return sec, doc, claims
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	sec, _, _ := s.sectionAccess(w, r, nil)
	if sec == nil {
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	sec, _, _ := s.sectionAccess(w, r, writerRoles)
	if sec == nil {
		return
	}
	var req sectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != "" {
		sec.Title = strings.TrimSpace(req.Title)
	}
	sec.Number = req.Number
	if req.Level >= 1 && req.Level <= 6 {
		sec.Level = req.Level
	}
	sec.ParentID = req.ParentID
	if req.Status != "" {
		sec.Status = req.Status
	}
	sec.ContentPreview = req.ContentPreview
	if req.OpenQuestions != "" {
		sec.OpenQuestions = req.OpenQuestions
	}
	if err := s.store.UpdateSection(r.Context(), sec); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	sec, _, _ := s.sectionAccess(w, r, writerRoles)
	if sec == nil {
		return
	}
	if err := s.store.DeleteSection(r.Context(), sec.ID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "supprimée"})
}

func (s *Server) handleListBindings(w http.ResponseWriter, r *http.Request) {
	sec, _, _ := s.sectionAccess(w, r, nil)
	if sec == nil {
		return
	}
	bindings, err := s.store.ListBindings(r.Context(), sec.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bindings)
}

type bindingRequest struct {
	SessionID   string `json:"session_id"`
	BindingType string `json:"binding_type"`
}

func (s *Server) handleCreateBinding(w http.ResponseWriter, r *http.Request) {
	sec, doc, _ := s.sectionAccess(w, r, writerRoles)
	if sec == nil {
		return
	}
	var req bindingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !store.ValidBindingType(req.BindingType) {
		writeError(w, http.StatusBadRequest, "type de liaison invalide")
		return
	}

	session, err := s.store.GetSession(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "session inconnue")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	// A binding never crosses projects.
	if session.ProjectID != doc.ProjectID {
		writeError(w, http.StatusBadRequest, "la session appartient à un autre projet")
		return
	}

	binding := &store.SectionBinding{
		ID:          idgen.New(),
		SectionID:   sec.ID,
		SessionID:   session.ID,
		BindingType: req.BindingType,
	}
	if err := s.store.CreateBinding(r.Context(), binding); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, binding)
}

func (s *Server) handleDeactivateBinding(w http.ResponseWriter, r *http.Request) {
	// Resolve the binding's project through its session before touching it.
	binding, err := s.store.GetBinding(r.Context(), chi.URLParam(r, "bindingID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	session, err := s.store.GetSession(r.Context(), binding.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if s.requireMember(w, r, session.ProjectID, writerRoles) == nil {
		return
	}
	if err := s.store.DeactivateBinding(r.Context(), binding.ID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "désactivée"})
}
