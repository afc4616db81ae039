package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cahier/assist"
	"github.com/hazyhaar/cahier/export"
	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/store"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.requireMember(w, r, projectID, nil) == nil {
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type sessionRequest struct {
	Title        string `json:"title"`
	Status       string `json:"status"`
	SystemPrompt string `json:"system_prompt"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	claims := s.requireMember(w, r, projectID, chatRoles)
	if claims == nil {
		return
	}
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "Nouvel entretien"
	}

	session := &store.ChatSession{
		ID:           idgen.New(),
		ProjectID:    projectID,
		UserID:       claims.UserID,
		Title:        strings.TrimSpace(req.Title),
		Status:       store.SessionActive,
		SystemPrompt: req.SystemPrompt,
	}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, nil)
	if session == nil {
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, chatRoles)
	if session == nil {
		return
	}
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != "" {
		session.Title = strings.TrimSpace(req.Title)
	}
	if req.Status != "" {
		session.Status = req.Status
	}
	if req.SystemPrompt != "" {
		session.SystemPrompt = req.SystemPrompt
	}
	if err := s.store.UpdateSession(r.Context(), session); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, nil)
	if session == nil {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := s.store.ListMessages(r.Context(), session.ID, limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) requireAssistant(w http.ResponseWriter) bool {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant non configuré")
		return false
	}
	return true
}

type chatRequest struct {
	Content string `json:"content"`
}

// conversation rebuilds the LLM message list from the stored history plus the
// incoming user turn.
func (s *Server) conversation(r *http.Request, session *store.ChatSession, content string) ([]assist.Message, error) {
	history, err := s.store.ListMessages(r.Context(), session.ID, 0)
	if err != nil {
		return nil, err
	}
	messages := make([]assist.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != store.RoleUser && m.Role != store.RoleAssistant {
			continue
		}
		messages = append(messages, assist.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, assist.Message{Role: store.RoleUser, Content: content})
	return messages, nil
}

func (s *Server) systemPrompt(session *store.ChatSession) string {
	if session.SystemPrompt != "" {
		return session.SystemPrompt
	}
	return assist.SystemPrompt
}

// persistExchange stores the user turn, the assistant turn, and the token
// usage in one pass.
func (s *Server) persistExchange(r *http.Request, session *store.ChatSession, userContent, assistantContent, messageType, extraJSON string, usage assist.Usage) (*store.Message, error) {
	userMsg := &store.Message{
		ID:        idgen.New(),
		SessionID: session.ID,
		Role:      store.RoleUser,
		Content:   userContent,
	}
	if err := s.store.CreateMessage(r.Context(), userMsg); err != nil {
		return nil, err
	}
	reply := &store.Message{
		ID:           idgen.New(),
		SessionID:    session.ID,
		Role:         store.RoleAssistant,
		MessageType:  messageType,
		Content:      assistantContent,
		ExtraJSON:    extraJSON,
		InputTokens:  int64(usage.InputTokens),
		OutputTokens: int64(usage.OutputTokens),
	}
	if err := s.store.CreateMessage(r.Context(), reply); err != nil {
		return nil, err
	}
	if err := s.store.AddTokenUsage(r.Context(), session.ID,
		int64(usage.InputTokens), int64(usage.OutputTokens)); err != nil {
		return nil, err
	}
	return reply, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	session, claims := s.sessionAccess(w, r, chatRoles)
	if session == nil || !s.requireAssistant(w) {
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "message vide")
		return
	}

	messages, err := s.conversation(r, session, req.Content)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	reply, err := s.assistant.Chat(r.Context(), s.systemPrompt(session), messages)
	if err != nil {
		s.logger.Error("assistant chat failed", "session_id", session.ID, "error", err)
		s.logEvent(r.Context(), observability.BusinessEvent{
			EventType: "ai", EntityType: "session", EntityID: session.ID,
			ProjectID: session.ProjectID, UserID: claims.UserID, Action: "chat", Success: false,
		})
		writeError(w, http.StatusBadGateway, "l'assistant est indisponible")
		return
	}

	stored, err := s.persistExchange(r, session, req.Content, reply.Text, store.MessageText, "", reply.Usage)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "ai", EntityType: "session", EntityID: session.ID,
		ProjectID: session.ProjectID, UserID: claims.UserID, Action: "chat", Success: true,
	})
	writeJSON(w, http.StatusOK, stored)
}

// handleChatStream streams the assistant reply over SSE, then persists the
// full exchange.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, chatRoles)
	if session == nil || !s.requireAssistant(w) {
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "message vide")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "le streaming n'est pas supporté")
		return
	}

	messages, err := s.conversation(r, session, req.Content)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	reply, err := s.assistant.ChatStream(r.Context(), s.systemPrompt(session), messages, func(chunk string) {
		data, _ := json.Marshal(map[string]string{"delta": chunk})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	})
	if err != nil {
		s.logger.Error("assistant stream failed", "session_id", session.ID, "error", err)
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", `{"error":"l'assistant est indisponible"}`)
		flusher.Flush()
		return
	}

	if _, err := s.persistExchange(r, session, req.Content, reply.Text, store.MessageText, "", reply.Usage); err != nil {
		s.logger.Error("persist streamed exchange failed", "session_id", session.ID, "error", err)
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

type questionnaireRequest struct {
	DocType string `json:"doc_type"`
}

func (s *Server) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, chatRoles)
	if session == nil || !s.requireAssistant(w) {
		return
	}
	var req questionnaireRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DocType == "" {
		req.DocType = store.DocTypeRequirements
	}

	project, err := s.store.GetProject(r.Context(), session.ProjectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	desc := project.Name
	if project.Description != "" {
		desc += " — " + project.Description
	}

	questions, usage, err := s.assistant.GenerateQuestionnaire(r.Context(), desc, req.DocType)
	if err != nil {
		s.logger.Error("questionnaire generation failed", "session_id", session.ID, "error", err)
		writeError(w, http.StatusBadGateway, "l'assistant est indisponible")
		return
	}

	extra, _ := json.Marshal(questions)
	msg := &store.Message{
		ID:           idgen.New(),
		SessionID:    session.ID,
		Role:         store.RoleAssistant,
		MessageType:  store.MessageQuestionnaire,
		Content:      fmt.Sprintf("Questionnaire généré (%d questions)", len(questions)),
		ExtraJSON:    string(extra),
		InputTokens:  int64(usage.InputTokens),
		OutputTokens: int64(usage.OutputTokens),
	}
	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.AddTokenUsage(r.Context(), session.ID,
		int64(usage.InputTokens), int64(usage.OutputTokens)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "questions": questions})
}

type suggestRequest struct {
	SectionID string `json:"section_id"`
}

func (s *Server) handleSuggestRequirements(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, chatRoles)
	if session == nil || !s.requireAssistant(w) {
		return
	}
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	section, err := s.store.GetSection(r.Context(), req.SectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "section inconnue")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	doc, err := s.store.GetDocument(r.Context(), section.DocumentID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if doc.ProjectID != session.ProjectID {
		writeError(w, http.StatusBadRequest, "la section appartient à un autre projet")
		return
	}

	history, err := s.store.ListMessages(r.Context(), session.ID, 0)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	conversation := make([]assist.Message, 0, len(history))
	for _, m := range history {
		if m.Role != store.RoleUser && m.Role != store.RoleAssistant {
			continue
		}
		conversation = append(conversation, assist.Message{Role: m.Role, Content: m.Content})
	}

	suggestions, usage, err := s.assistant.SuggestRequirements(r.Context(), section.Title, conversation)
	if err != nil {
		s.logger.Error("requirement suggestion failed", "session_id", session.ID, "error", err)
		writeError(w, http.StatusBadGateway, "l'assistant est indisponible")
		return
	}

	extra, _ := json.Marshal(suggestions)
	msg := &store.Message{
		ID:           idgen.New(),
		SessionID:    session.ID,
		Role:         store.RoleAssistant,
		MessageType:  store.MessageSuggestion,
		Content:      fmt.Sprintf("%d exigences proposées pour « %s »", len(suggestions), section.Title),
		ExtraJSON:    string(extra),
		InputTokens:  int64(usage.InputTokens),
		OutputTokens: int64(usage.OutputTokens),
	}
	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.AddTokenUsage(r.Context(), session.ID,
		int64(usage.InputTokens), int64(usage.OutputTokens)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "suggestions": suggestions})
}

// handleSessionBindings returns the sections this session actively feeds.
func (s *Server) handleSessionBindings(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionAccess(w, r, nil)
	if session == nil {
		return
	}
	bindings, err := s.store.ListActiveBindingsForSession(r.Context(), session.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bindings)
}

func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	session, claims := s.sessionAccess(w, r, nil)
	if session == nil {
		return
	}
	messages, err := s.store.ListMessages(r.Context(), session.ID, 0)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	data, err := export.Session(session, messages)
	if err != nil {
		s.logger.Error("session export failed", "session_id", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "échec de l'export")
		return
	}
	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "export", EntityType: "session", EntityID: session.ID,
		ProjectID: session.ProjectID, UserID: claims.UserID, Action: "export_json", Success: true,
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
