package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func messagesResponse(text string, in, out int) string {
	resp := map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
		"usage":   map[string]int{"input_tokens": in, "output_tokens": out},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestChat(t *testing.T) {
	var gotBody apiRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("Anthropic-Version") == "" {
			t.Errorf("missing version header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, messagesResponse("Bonjour, décrivez votre projet.", 120, 18))
	})

	reply, err := c.Chat(context.Background(), SystemPrompt, []Message{
		{Role: "user", Content: "Commençons l'entretien."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "Bonjour, décrivez votre projet." {
		t.Errorf("text = %q", reply.Text)
	}
	if reply.Usage.InputTokens != 120 || reply.Usage.OutputTokens != 18 {
		t.Errorf("usage = %+v", reply.Usage)
	}
	if gotBody.System != SystemPrompt {
		t.Error("system prompt not forwarded")
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestChatRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, messagesResponse("ok", 1, 1))
	})

	reply, err := c.Chat(context.Background(), "", []Message{{Role: "user", Content: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "ok" {
		t.Errorf("text = %q", reply.Text)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestChatAPIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"max_tokens required"}}`)
	})

	_, err := c.Chat(context.Background(), "", []Message{{Role: "user", Content: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "max_tokens required") {
		t.Errorf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", calls.Load())
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestChatStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":50,"output_tokens":0}}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Quelle est "}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"la cible ?"}}`,
			`{"type":"message_delta","usage":{"output_tokens":7}}`,
			`{"type":"message_stop"}`,
		}
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
	})

	var deltas []string
	reply, err := c.ChatStream(context.Background(), "", []Message{{Role: "user", Content: "x"}},
		func(chunk string) { deltas = append(deltas, chunk) })
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "Quelle est la cible ?" {
		t.Errorf("text = %q", reply.Text)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas = %d, want 2", len(deltas))
	}
	if reply.Usage.InputTokens != 50 || reply.Usage.OutputTokens != 7 {
		t.Errorf("usage = %+v", reply.Usage)
	}
}

func TestGenerateQuestionnaire(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Prose around the array exercises the extraction fallback.
		text := "Voici le questionnaire :\n[{\"section\":\"Contexte\",\"question\":\"Quel est l'objectif ?\"}]\nBonne chance."
		fmt.Fprint(w, messagesResponse(text, 10, 20))
	})

	questions, usage, err := c.GenerateQuestionnaire(context.Background(), "site de réservation", "requirements")
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 1 || questions[0].Section != "Contexte" {
		t.Errorf("questions = %+v", questions)
	}
	if usage.OutputTokens != 20 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestSuggestRequirements(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, messagesResponse(`["Le système doit supporter 500 utilisateurs simultanés."]`, 5, 9))
	})

	got, _, err := c.SuggestRequirements(context.Background(), "Performances", []Message{
		{Role: "user", Content: "On attend 500 visiteurs en même temps aux heures de pointe."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !strings.Contains(got[0], "500") {
		t.Errorf("suggestions = %v", got)
	}
}

func TestSuggestRequirementsBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, messagesResponse("Je ne peux pas répondre en JSON.", 1, 1))
	})

	if _, _, err := c.SuggestRequirements(context.Background(), "Performances", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`["a","b"]`, `["a","b"]`},
		{"Voici :\n```json\n[1,2]\n```", "[1,2]"},
		{"pas de tableau", "pas de tableau"},
	}
	for _, tt := range tests {
		if got := extractJSONArray(tt.in); got != tt.want {
			t.Errorf("extractJSONArray(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
