package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cahier/docimport"
	"github.com/hazyhaar/cahier/export"
	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/safe"
	"github.com/hazyhaar/cahier/store"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, nil) == nil {
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

type documentRequest struct {
	Title   string `json:"title"`
	DocType string `json:"doc_type"`
	Status  string `json:"status"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	claims := s.requireMember(w, r, projectID, writerRoles)
	if claims == nil {
		return
	}
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "le titre est requis")
		return
	}
	if req.DocType == "" {
		req.DocType = store.DocTypeRequirements
	}
	if !store.ValidDocType(req.DocType) {
		writeError(w, http.StatusBadRequest, "type de document invalide")
		return
	}

	doc := &store.Document{
		ID:        idgen.New(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(req.Title),
		DocType:   req.DocType,
		Status:    store.StatusDraft,
		CreatedBy: claims.UserID,
	}
	if err := s.store.CreateDocument(r.Context(), doc, idgen.New()); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// handleImportDocument accepts a multipart docx upload, runs the import
// pipeline, and persists the content tree plus one section row per heading.
func (s *Server) handleImportDocument(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	claims := s.requireMember(w, r, projectID, writerRoles)
	if claims == nil {
		return
	}

	maxSize := s.cfg.MaxImportSize
	if maxSize <= 0 {
		maxSize = safe.MaxUploadBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "fichier trop volumineux")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "champ de fichier « file » manquant")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".docx") {
		writeError(w, http.StatusUnsupportedMediaType, "seuls les fichiers .docx sont acceptés")
		return
	}

	data, err := safe.LimitedReadAll(file, maxSize)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "fichier trop volumineux")
		return
	}

	res, err := s.importer.Import(r.Context(), data)
	if err != nil {
		s.logger.Warn("document import failed", "file", header.Filename, "error", err)
		s.logEvent(r.Context(), observability.BusinessEvent{
			EventType: "import", EntityType: "document", ProjectID: projectID,
			UserID: claims.UserID, Action: "import", Success: false,
		})
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("document illisible : %v", err))
		return
	}

	contentJSON, err := json.Marshal(res.Content)
	if err != nil {
		s.logger.Error("content marshal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "erreur interne")
		return
	}

	title := res.Metadata.Title
	if title == "" {
		title = strings.TrimSuffix(header.Filename, ".docx")
	}

	doc := &store.Document{
		ID:           idgen.New(),
		ProjectID:    projectID,
		Title:        title,
		DocType:      store.DocTypeRequirements,
		Status:       store.StatusDraft,
		ContentJSON:  string(contentJSON),
		ImportedFrom: header.Filename,
		CreatedBy:    claims.UserID,
	}
	if err := s.store.CreateDocument(r.Context(), doc, idgen.New()); err != nil {
		s.writeStoreError(w, err)
		return
	}

	sections := make([]*store.Section, 0, len(res.Sections))
	for _, sec := range res.Sections {
		sections = append(sections, &store.Section{
			ID:         idgen.New(),
			DocumentID: doc.ID,
			Number:     sec.Number,
			Title:      sec.Title,
			Level:      sec.Level,
			NodeID:     sec.AnchorID,
		})
	}
	if err := s.store.ReplaceSections(r.Context(), doc.ID, sections); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "import", EntityType: "document", EntityID: doc.ID,
		ProjectID: projectID, UserID: claims.UserID, Action: "import", Success: true,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"document": doc,
		"sections": sections,
		"metadata": res.Metadata,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.documentAccess(w, r, writerRoles)
	if doc == nil {
		return
	}
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != "" {
		doc.Title = strings.TrimSpace(req.Title)
	}
	if req.DocType != "" {
		if !store.ValidDocType(req.DocType) {
			writeError(w, http.StatusBadRequest, "type de document invalide")
			return
		}
		doc.DocType = req.DocType
	}
	if req.Status != "" {
		doc.Status = req.Status
	}
	if err := s.store.UpdateDocumentMeta(r.Context(), doc); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, claims := s.documentAccess(w, r, writerRoles)
	if doc == nil {
		return
	}
	if err := s.store.DeleteDocument(r.Context(), doc.ID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "document", EntityType: "document", EntityID: doc.ID,
		ProjectID: doc.ProjectID, UserID: claims.UserID, Action: "delete", Success: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "supprimé"})
}

type saveContentRequest struct {
	Content         json.RawMessage `json:"content"`
	Summary         string          `json:"summary"`
	ExpectedVersion int             `json:"expected_version"`
}

func (s *Server) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	doc, claims := s.documentAccess(w, r, writerRoles)
	if doc == nil {
		return
	}
	var req saveContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Content) == 0 || !json.Valid(req.Content) {
		writeError(w, http.StatusBadRequest, "contenu JSON invalide")
		return
	}

	newVersion, err := s.store.SaveDocumentContent(r.Context(), doc.ID,
		string(req.Content), req.Summary, claims.UserID, idgen.New(), req.ExpectedVersion)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": newVersion})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	versions, err := s.store.ListVersions(r.Context(), doc.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	version, ok := parseVersion(w, r)
	if !ok {
		return
	}
	v, err := s.store.GetVersion(r.Context(), doc.ID, version)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleRestoreVersion saves a past snapshot's content as a new version.
func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	doc, claims := s.documentAccess(w, r, writerRoles)
	if doc == nil {
		return
	}
	version, ok := parseVersion(w, r)
	if !ok {
		return
	}
	v, err := s.store.GetVersion(r.Context(), doc.ID, version)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	summary := fmt.Sprintf("restauration de la version %d", version)
	newVersion, err := s.store.SaveDocumentContent(r.Context(), doc.ID,
		v.ContentJSON, summary, claims.UserID, idgen.New(), doc.CurrentVersion)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": newVersion})
}

func parseVersion(w http.ResponseWriter, r *http.Request) (int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "numéro de version invalide")
		return 0, false
	}
	return version, true
}

func (s *Server) contentTree(w http.ResponseWriter, doc *store.Document) (docimport.Node, bool) {
	var tree docimport.Node
	if err := json.Unmarshal([]byte(doc.ContentJSON), &tree); err != nil {
		s.logger.Error("stored content unreadable", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "contenu du document illisible")
		return tree, false
	}
	return tree, true
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	doc, claims := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	tree, ok := s.contentTree(w, doc)
	if !ok {
		return
	}
	md, err := export.Markdown(tree)
	if err != nil {
		s.logger.Error("markdown export failed", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "échec de l'export")
		return
	}
	s.logExport(r, doc, claims.UserID, "markdown")
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(md))
}

func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	doc, claims := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	tree, ok := s.contentTree(w, doc)
	if !ok {
		return
	}
	s.logExport(r, doc, claims.UserID, "html")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(export.SanitizedHTML(tree)))
}

func (s *Server) handleExportDocx(w http.ResponseWriter, r *http.Request) {
	doc, claims := s.documentAccess(w, r, nil)
	if doc == nil {
		return
	}
	tree, ok := s.contentTree(w, doc)
	if !ok {
		return
	}
	data, err := export.Docx(tree, export.DocxMeta{Title: doc.Title})
	if err != nil {
		s.logger.Error("docx export failed", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "échec de l'export")
		return
	}
	s.logExport(r, doc, claims.UserID, "docx")
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", doc.Title+".docx"))
	w.Write(data)
}

func (s *Server) logExport(r *http.Request, doc *store.Document, userID, format string) {
	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "export", EntityType: "document", EntityID: doc.ID,
		ProjectID: doc.ProjectID, UserID: userID, Action: "export_" + format, Success: true,
	})
}
