package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt is the default interviewer persona for requirements sessions.
const SystemPrompt = `Tu es un assistant spécialisé dans le recueil d'exigences pour des cahiers des charges.
Tu mènes un entretien structuré : tu poses des questions précises, une à la fois,
tu reformules les réponses pour valider ta compréhension, et tu signales les
points ambigus ou contradictoires. Tu réponds toujours en français.`

// Question is one generated questionnaire entry.
type Question struct {
	Section   string `json:"section"`
	Question  string `json:"question"`
	Rationale string `json:"rationale,omitempty"`
}

const questionnairePrompt = `Projet : %s
Type de document : %s

Génère un questionnaire d'entretien pour recueillir les exigences de ce projet.
Réponds UNIQUEMENT avec un tableau JSON d'objets {"section","question","rationale"},
sans texte autour.`

// GenerateQuestionnaire asks the model for an interview questionnaire adapted
// to the project and document type.
func (c *Client) GenerateQuestionnaire(ctx context.Context, projectDesc, docType string) ([]Question, Usage, error) {
	reply, err := c.Chat(ctx, SystemPrompt, []Message{{
		Role:    "user",
		Content: fmt.Sprintf(questionnairePrompt, projectDesc, docType),
	}})
	if err != nil {
		return nil, Usage{}, err
	}

	var questions []Question
	if err := json.Unmarshal([]byte(extractJSONArray(reply.Text)), &questions); err != nil {
		return nil, reply.Usage, fmt.Errorf("parse questionnaire: %w", err)
	}
	return questions, reply.Usage, nil
}

const suggestPrompt = `Section du cahier des charges : %s

Conversation avec le client :
%s

Propose des exigences concrètes à ajouter dans cette section, déduites de la
conversation. Réponds UNIQUEMENT avec un tableau JSON de chaînes, une exigence
par entrée, sans texte autour.`

// SuggestRequirements extracts candidate requirements for a section from the
// conversation so far.
func (c *Client) SuggestRequirements(ctx context.Context, sectionTitle string, conversation []Message) ([]string, Usage, error) {
	var transcript strings.Builder
	for _, m := range conversation {
		transcript.WriteString(m.Role)
		transcript.WriteString(" : ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	reply, err := c.Chat(ctx, SystemPrompt, []Message{{
		Role:    "user",
		Content: fmt.Sprintf(suggestPrompt, sectionTitle, transcript.String()),
	}})
	if err != nil {
		return nil, Usage{}, err
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(extractJSONArray(reply.Text)), &suggestions); err != nil {
		return nil, reply.Usage, fmt.Errorf("parse suggestions: %w", err)
	}
	return suggestions, reply.Usage, nil
}

// extractJSONArray isolates the first top-level JSON array in text. Models
// sometimes wrap JSON in prose or markdown fences despite instructions.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
