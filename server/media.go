package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/safe"
	"github.com/hazyhaar/cahier/store"
)

// allowedMediaTypes maps accepted upload content types. PDFs additionally go
// through structural validation before storage.
var allowedMediaTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

func (s *Server) requireBlobs(w http.ResponseWriter) bool {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "stockage de médias non configuré")
		return false
	}
	return true
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, nil)
	if session == nil {
		return
	}
	media, err := s.store.ListMedia(r.Context(), session.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, media)
}

func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	session, claims := s.sessionAccess(w, r, chatRoles)
	if session == nil || !s.requireBlobs(w) {
		return
	}

	maxSize := s.cfg.MaxMediaSize
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

	data, err := safe.LimitedReadAll(file, maxSize)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "fichier trop volumineux")
		return
	}

	contentType := http.DetectContentType(data)
	if !allowedMediaTypes[contentType] {
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("type de fichier refusé : %s", contentType))
		return
	}
	if contentType == "application/pdf" {
		if err := validatePDF(data); err != nil {
			s.logger.Warn("pdf validation failed", "file", header.Filename, "error", err)
			writeError(w, http.StatusUnprocessableEntity, "PDF corrompu ou illisible")
			return
		}
	}

	// The extension flows into the object key.
	if ext := strings.TrimPrefix(filepath.Ext(header.Filename), "."); ext != "" {
		if err := safe.ValidateIdentifier(ext); err != nil {
			writeError(w, http.StatusBadRequest, "extension de fichier invalide")
			return
		}
	}

	key := s.blobs.ObjectKey(session.ID, header.Filename)
	if err := s.blobs.Upload(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.logger.Error("media upload failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "le stockage est indisponible")
		return
	}

	media := &store.Media{
		ID:          idgen.New(),
		SessionID:   session.ID,
		UploaderID:  claims.UserID,
		FileName:    header.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		ObjectKey:   key,
	}
	if err := s.store.CreateMedia(r.Context(), media); err != nil {
		// Orphaned object; best effort removal.
		_ = s.blobs.Delete(r.Context(), key)
		s.writeStoreError(w, err)
		return
	}

	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "media", EntityType: "media", EntityID: media.ID,
		ProjectID: session.ProjectID, UserID: claims.UserID, Action: "upload", Success: true,
	})
	writeJSON(w, http.StatusCreated, media)
}

// validatePDF runs a structural check so broken or booby-trapped files never
// reach storage.
func validatePDF(data []byte) error {
	_, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	return err
}

// mediaAccess loads a media row and checks membership via its session.
func (s *Server) mediaAccess(w http.ResponseWriter, r *http.Request, allowed map[string]bool) (*store.Media, *store.ChatSession) {
	media, err := s.store.GetMedia(r.Context(), chi.URLParam(r, "mediaID"))
	if err != nil {
		s.writeStoreError(w, err)
		return nil, nil
	}
	session, err := s.store.GetSession(r.Context(), media.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return nil, nil
	}
	if s.requireMember(w, r, session.ProjectID, allowed) == nil {
		return nil, nil
	}
	return media, session
}

func (s *Server) handlePresignMedia(w http.ResponseWriter, r *http.Request) {
	if !s.requireBlobs(w) {
		return
	}
	media, _ := s.mediaAccess(w, r, nil)
	if media == nil {
		return
	}
	url, err := s.blobs.PresignGet(r.Context(), media.ObjectKey, 15*time.Minute)
	if err != nil {
		s.logger.Error("presign failed", "key", media.ObjectKey, "error", err)
		writeError(w, http.StatusBadGateway, "le stockage est indisponible")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleDownloadMedia streams the object through the API, for deployments
// where the storage endpoint is not reachable by clients.
func (s *Server) handleDownloadMedia(w http.ResponseWriter, r *http.Request) {
	if !s.requireBlobs(w) {
		return
	}
	media, _ := s.mediaAccess(w, r, nil)
	if media == nil {
		return
	}
	rc, err := s.blobs.Download(r.Context(), media.ObjectKey)
	if err != nil {
		s.logger.Error("blob download failed", "key", media.ObjectKey, "error", err)
		writeError(w, http.StatusBadGateway, "le stockage est indisponible")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", media.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", media.FileName))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("media stream interrupted", "key", media.ObjectKey, "error", err)
	}
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	if !s.requireBlobs(w) {
		return
	}
	media, _ := s.mediaAccess(w, r, chatRoles)
	if media == nil {
		return
	}
	if err := s.blobs.Delete(r.Context(), media.ObjectKey); err != nil {
		s.logger.Error("blob delete failed", "key", media.ObjectKey, "error", err)
		writeError(w, http.StatusBadGateway, "le stockage est indisponible")
		return
	}
	if err := s.store.DeleteMedia(r.Context(), media.ID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "supprimé"})
}
