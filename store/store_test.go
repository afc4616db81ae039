package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/cahier/idgen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplySchema(db); err != nil {
		t.Fatal(err)
	}
	return NewStore(db)
}

func seedUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u := &User{ID: idgen.New(), Email: email, Name: "Test", PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func seedProject(t *testing.T, s *Store, ownerID string) *Project {
	t.Helper()
	p := &Project{ID: idgen.New(), Name: "Refonte portail", OwnerID: ownerID}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func seedDocument(t *testing.T, s *Store, projectID, userID string) *Document {
	t.Helper()
	d := &Document{ID: idgen.New(), ProjectID: projectID, Title: "Cahier", CreatedBy: userID}
	if err := s.CreateDocument(context.Background(), d, idgen.New()); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "Marie@Example.com")

	got, err := s.GetUserByEmail(ctx, "marie@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID {
		t.Errorf("lookup by email returned %s, want %s", got.ID, u.ID)
	}

	// Duplicate email.
	dup := &User{ID: idgen.New(), Email: "marie@example.com", PasswordHash: "y"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner@example.com")
	guest := seedUser(t, s, "guest@example.com")
	p := seedProject(t, s, owner.ID)

	// Creating a project makes its owner a member.
	role, err := s.MemberRole(ctx, p.ID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if role != RoleOwner {
		t.Errorf("owner role = %q", role)
	}

	if err := s.AddMember(ctx, &ProjectMember{ProjectID: p.ID, UserID: guest.ID, Role: RoleClient}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember(ctx, &ProjectMember{ProjectID: p.ID, UserID: guest.ID, Role: RoleViewer}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	projects, err := s.ListProjectsForUser(ctx, guest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project for guest, got %d", len(projects))
	}

	// The owner cannot be removed.
	if err := s.RemoveMember(ctx, p.ID, owner.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("owner removal: expected ErrNotFound, got %v", err)
	}
	if err := s.RemoveMember(ctx, p.ID, guest.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MemberRole(ctx, p.ID, guest.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestDocumentVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u@example.com")
	p := seedProject(t, s, u.ID)
	d := seedDocument(t, s, p.ID, u.ID)

	if d.CurrentVersion != 1 {
		t.Fatalf("fresh document version = %d", d.CurrentVersion)
	}

	content := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"v2"}]}]}`
	v, err := s.SaveDocumentContent(ctx, d.ID, content, "édition", u.ID, idgen.New(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Fatalf("new version = %d, want 2", v)
	}

	// Stale expected version loses.
	_, err = s.SaveDocumentContent(ctx, d.ID, content, "stale", u.ID, idgen.New(), 1)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	versions, err := s.ListVersions(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Version != 2 {
		t.Fatalf("versions = %d entries, first %d", len(versions), versions[0].Version)
	}

	v1, err := s.GetVersion(ctx, d.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v1.ContentJSON == "" {
		t.Error("snapshot content missing")
	}

	// Restore = save the old snapshot as a new version.
	v3, err := s.SaveDocumentContent(ctx, d.ID, v1.ContentJSON, "restauration v1", u.ID, idgen.New(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if v3 != 3 {
		t.Fatalf("restored version = %d, want 3", v3)
	}
	got, err := s.GetDocument(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentJSON != v1.ContentJSON {
		t.Error("restore did not replace content")
	}
}

func TestSectionsAndBindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u@example.com")
	p := seedProject(t, s, u.ID)
	d := seedDocument(t, s, p.ID, u.ID)

	secs := []*Section{
		{ID: idgen.New(), Number: "1", Title: "Introduction", Level: 1, NodeID: "aaaa1111"},
		{ID: idgen.New(), Number: "1.1", Title: "Portée", Level: 2, NodeID: "bbbb2222"},
		{ID: idgen.New(), Number: "2", Title: "Exigences", Level: 1, NodeID: "cccc3333"},
	}
	if err := s.ReplaceSections(ctx, d.ID, secs); err != nil {
		t.Fatal(err)
	}

	listed, err := s.ListSections(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(listed))
	}
	for i, sec := range listed {
		if sec.Position != i {
			t.Errorf("section %d position = %d", i, sec.Position)
		}
	}

	// Replacement wipes the previous outline.
	if err := s.ReplaceSections(ctx, d.ID, secs[:1]); err != nil {
		t.Fatal(err)
	}
	listed, err = s.ListSections(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 section after replace, got %d", len(listed))
	}

	cs := &ChatSession{ID: idgen.New(), ProjectID: p.ID, UserID: u.ID, Title: "Atelier"}
	if err := s.CreateSession(ctx, cs); err != nil {
		t.Fatal(err)
	}
	b := &SectionBinding{ID: idgen.New(), SectionID: listed[0].ID, SessionID: cs.ID, BindingType: BindingDiscussion}
	if err := s.CreateBinding(ctx, b); err != nil {
		t.Fatal(err)
	}

	active, err := s.ListActiveBindingsForSession(ctx, cs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active binding, got %d", len(active))
	}

	if err := s.DeactivateBinding(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	// Already inactive.
	if err := s.DeactivateBinding(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second deactivation, got %v", err)
	}

	all, err := s.ListBindings(ctx, listed[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Active || all[0].DeactivatedAt == 0 {
		t.Errorf("binding after deactivation = %+v", all[0])
	}
}

func TestSessionsAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u@example.com")
	p := seedProject(t, s, u.ID)

	cs := &ChatSession{ID: idgen.New(), ProjectID: p.ID, UserID: u.ID, Title: "Entretien"}
	if err := s.CreateSession(ctx, cs); err != nil {
		t.Fatal(err)
	}

	for i, m := range []*Message{
		{ID: idgen.New(), SessionID: cs.ID, Role: RoleUser, Content: "Bonjour"},
		{ID: idgen.New(), SessionID: cs.ID, Role: RoleAssistant, Content: "Bonjour, décrivez votre besoin."},
	} {
		m.CreatedAt = int64(1000 + i)
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.ListMessages(ctx, cs.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != RoleUser {
		t.Fatalf("messages = %d, first role %q", len(msgs), msgs[0].Role)
	}
	if msgs[0].MessageType != MessageText {
		t.Errorf("default message type = %q", msgs[0].MessageType)
	}

	if err := s.AddTokenUsage(ctx, cs.ID, 120, 350); err != nil {
		t.Fatal(err)
	}
	if err := s.AddTokenUsage(ctx, cs.ID, 80, 150); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSession(ctx, cs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.InputTokens != 200 || got.OutputTokens != 500 {
		t.Errorf("token usage = %d/%d", got.InputTokens, got.OutputTokens)
	}
}

func TestMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u@example.com")
	p := seedProject(t, s, u.ID)
	cs := &ChatSession{ID: idgen.New(), ProjectID: p.ID, UserID: u.ID}
	if err := s.CreateSession(ctx, cs); err != nil {
		t.Fatal(err)
	}

	m := &Media{
		ID: idgen.New(), SessionID: cs.ID, UploaderID: u.ID,
		FileName: "maquette.png", ContentType: "image/png", SizeBytes: 2048,
		ObjectKey: "sessions/" + cs.ID + "/abc.png",
	}
	if err := s.CreateMedia(ctx, m); err != nil {
		t.Fatal(err)
	}

	items, err := s.ListMedia(ctx, cs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ObjectKey != m.ObjectKey {
		t.Fatalf("media = %+v", items)
	}

	if err := s.DeleteMedia(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMedia(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
