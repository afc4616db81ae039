// CLAUDE:SUMMARY Entity structs and enumerated roles/statuses for the cahier relational model.
package store

// Project member roles.
const (
	RoleOwner    = "owner"
	RoleGatherer = "gatherer"
	RoleClient   = "client"
	RoleViewer   = "viewer"
)

// ValidRole reports whether role is one of the known project roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleGatherer, RoleClient, RoleViewer:
		return true
	}
	return false
}

// Document types.
const (
	DocTypeRequirements  = "requirements"
	DocTypeFunctional    = "functional"
	DocTypeSpecification = "specification"
	DocTypeROM           = "rom"
	DocTypeCustom        = "custom"
)

// ValidDocType reports whether t is a known document type.
func ValidDocType(t string) bool {
	switch t {
	case DocTypeRequirements, DocTypeFunctional, DocTypeSpecification, DocTypeROM, DocTypeCustom:
		return true
	}
	return false
}

// Document and section statuses.
const (
	StatusDraft    = "draft"
	StatusInReview = "in_review"
	StatusApproved = "approved"
	StatusArchived = "archived"
)

// Section binding types, linking a chat session to a document section.
const (
	BindingDiscussion = "discussion"
	BindingEditing    = "editing"
	BindingReference  = "reference"
	BindingQuestion   = "question"
	BindingApproval   = "approval"
)

// ValidBindingType reports whether t is a known binding type.
func ValidBindingType(t string) bool {
	switch t {
	case BindingDiscussion, BindingEditing, BindingReference, BindingQuestion, BindingApproval:
		return true
	}
	return false
}

// Chat session statuses.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionArchived  = "archived"
)

// Message roles and types.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	MessageText          = "text"
	MessageQuestionnaire = "questionnaire"
	MessageSuggestion    = "suggestion"
)

// User is an account. PasswordHash is a bcrypt hash, never exposed over the
// API.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Project groups documents, chat sessions, and members.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	AddedAt   int64  `json:"added_at"`
}

// Document is a structured requirements document. ContentJSON holds the
// content tree verbatim as produced by import or editing.
type Document struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	Title          string `json:"title"`
	DocType        string `json:"doc_type"`
	Status         string `json:"status"`
	ContentJSON    string `json:"content_json"`
	CurrentVersion int    `json:"current_version"`
	ImportedFrom   string `json:"imported_from"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// DocumentVersion is an immutable content snapshot.
type DocumentVersion struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Version     int    `json:"version"`
	ContentJSON string `json:"content_json"`
	Summary     string `json:"summary"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
}

// Section is one outline entry of a document. NodeID is the anchor placed on
// the matching heading node in the content tree; chat bindings reference the
// section through it. Number is stored as detected — never validated for
// uniqueness or nesting consistency.
type Section struct {
	ID             string `json:"id"`
	DocumentID     string `json:"document_id"`
	Number         string `json:"section_number"`
	Title          string `json:"title"`
	Level          int    `json:"level"`
	ParentID       string `json:"parent_id,omitempty"`
	Position       int    `json:"position"`
	Status         string `json:"status"`
	NodeID         string `json:"prosemirror_node_id"`
	ContentPreview string `json:"content_preview"`
	OpenQuestions  string `json:"open_questions"`
	AIGenerated    bool   `json:"ai_generated"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// SectionBinding attaches a chat session to a section for a purpose
// (discussion, editing, reference, question, approval). Deactivated bindings
// are kept for history.
type SectionBinding struct {
	ID            string `json:"id"`
	SectionID     string `json:"section_id"`
	SessionID     string `json:"session_id"`
	BindingType   string `json:"binding_type"`
	Active        bool   `json:"active"`
	CreatedAt     int64  `json:"created_at"`
	DeactivatedAt int64  `json:"deactivated_at,omitempty"`
}

// ChatSession is one requirements-gathering conversation.
type ChatSession struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	SystemPrompt string `json:"-"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Message is one chat turn. ExtraJSON carries type-specific payloads such as
// questionnaire structures or requirement suggestions.
type Message struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	Role         string `json:"role"`
	MessageType  string `json:"message_type"`
	Content      string `json:"content"`
	ExtraJSON    string `json:"extra_json,omitempty"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	CreatedAt    int64  `json:"created_at"`
}

// Media is an uploaded attachment stored in object storage under ObjectKey.
type Media struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	UploaderID  string `json:"uploader_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ObjectKey   string `json:"object_key"`
	CreatedAt   int64  `json:"created_at"`
}
