package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/domain/uow"
	"accelerator-portal/internal/testutil/applicationmock"
	"accelerator-portal/internal/testutil/uowmock"
)

const knownID = "0123456789abcdef0123456789abcdef"

type memFiles struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	putErr  error
}

func newMemFiles() *memFiles { return &memFiles{data: map[string][]byte{}} }

func (m *memFiles) Put(_ context.Context, name string, r io.Reader) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "key-" + name
	m.data[key] = b
	return key, nil
}

func (m *memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type recNotifier struct {
	received []string
	changed  []domain.Status
}

func (n *recNotifier) ApplicationReceived(_ context.Context, a *domain.Application) error {
	n.received = append(n.received, a.ApplicationID)
	return nil
}

func (n *recNotifier) StatusChanged(_ context.Context, a *domain.Application) error {
	n.changed = append(n.changed, a.Status)
	return nil
}

func validInput() CreateInput {
	content := []byte("%PDF-1.7 deck")
	return CreateInput{
		Email:              "a@acme.com",
		Phone:              "+251911000000",
		StartupName:        "Acme",
		TeamSize:           "3",
		Sector:             "Fintech",
		Description:        strings.Repeat("x", 80),
		Problem:            "p",
		Differentiation:    "d",
		PotentialCustomers: "c",
		Milestones:         "m",
		SupportNeeded:      []string{"Funding"},
		PitchDeck: Upload{
			Name:        "deck.pdf",
			ContentType: "application/pdf",
			Size:        int64(len(content)),
			Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
		},
	}
}

func TestUsecase_Create(t *testing.T) {
	var stored *domain.Application
	repo := &applicationmock.Repo{
		CreateFn: func(_ context.Context, a *domain.Application) error {
			stored = a
			return nil
		},
	}
	files := newMemFiles()
	notes := &recNotifier{}
	uc := NewUsecase(repo, uowmock.Passthrough(uow.Repos{Applications: repo}), files, notes, nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return fixed }

	got, err := uc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if stored == nil {
		t.Fatalf("repo.Create not called")
	}
	if got.ID != stored.ApplicationID || len(got.ID) != 32 {
		t.Fatalf("unexpected id %q (stored %q)", got.ID, stored.ApplicationID)
	}
	if !got.SubmissionDate.Equal(fixed) {
		t.Fatalf("submission date = %v, want %v", got.SubmissionDate, fixed)
	}
	if stored.Status != domain.StatusPending || stored.Progress != 1 {
		t.Fatalf("defaults not applied: status=%s progress=%d", stored.Status, stored.Progress)
	}
	if string(files.data[stored.PitchDeckPath]) != "%PDF-1.7 deck" {
		t.Fatalf("pitch deck not stored under %q", stored.PitchDeckPath)
	}
	if len(notes.received) != 1 || notes.received[0] != got.ID {
		t.Fatalf("notifier not called: %v", notes.received)
	}
}

func TestUsecase_Create_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing deck", func(in *CreateInput) { in.PitchDeck = Upload{} }},
		{"oversized deck", func(in *CreateInput) { in.PitchDeck.Size = domain.MaxPitchDeckBytes + 1 }},
		{"text deck", func(in *CreateInput) { in.PitchDeck.ContentType = "text/plain" }},
		{"no support", func(in *CreateInput) { in.SupportNeeded = nil }},
		{"funding without amount", func(in *CreateInput) { in.FundingSecured = true }},
		{"bad sector", func(in *CreateInput) { in.Sector = "Mining" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &applicationmock.Repo{CreateFn: func(context.Context, *domain.Application) error { created = true; return nil }}
			files := newMemFiles()
			uc := NewUsecase(repo, uowmock.New(), files, nil, nil)

			in := validInput()
			tt.mutate(&in)
			_, err := uc.Create(context.Background(), in)
			if !errors.Is(err, domain.ErrInvalid) {
				t.Fatalf("want ErrInvalid, got %v", err)
			}
			if created {
				t.Fatalf("repo.Create must not be called")
			}
			if len(files.data) != 0 {
				t.Fatalf("stored file left behind: %v", files.data)
			}
		})
	}
}

func TestUsecase_Create_RepoFailureDiscardsFile(t *testing.T) {
	boom := errors.New("db down")
	repo := &applicationmock.Repo{CreateFn: func(context.Context, *domain.Application) error { return boom }}
	files := newMemFiles()
	uc := NewUsecase(repo, uowmock.New(), files, nil, nil)

	if _, err := uc.Create(context.Background(), validInput()); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
	if len(files.data) != 0 || len(files.deleted) != 1 {
		t.Fatalf("file not discarded: data=%v deleted=%v", files.data, files.deleted)
	}
}

func TestUsecase_Get(t *testing.T) {
	repo := &applicationmock.Repo{
		GetByApplicationIDFn: func(_ context.Context, applicationID string) (*domain.Application, error) {
			if applicationID != knownID {
				return nil, domain.ErrNotFound
			}
			return &domain.Application{ApplicationID: knownID, StartupName: "Acme", Notes: "promising", Status: domain.StatusPending}, nil
		},
	}
	uc := NewUsecase(repo, uowmock.New(), newMemFiles(), nil, nil)

	got, err := uc.Get(context.Background(), knownID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AdminNote != "promising" || got.Notes != "promising" {
		t.Fatalf("adminNote not mirrored: %+v", got)
	}
	if got.PitchDeck != nil {
		t.Fatalf("expected no pitch deck")
	}

	if _, err := uc.Get(context.Background(), "not-an-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("malformed id: want ErrNotFound, got %v", err)
	}
}

func TestUsecase_UpdateDetails(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name        string
		start       domain.Status
		patch       DetailsPatch
		wantErr     error
		wantStatus  domain.Status
		wantNotify  int
		wantSaveRun bool
	}{
		{"approve pending", domain.StatusPending, DetailsPatch{Status: str("approved")}, nil, domain.StatusApproved, 1, true},
		{"same status is no-op", domain.StatusApproved, DetailsPatch{Status: str("approved")}, nil, domain.StatusApproved, 0, true},
		{"back to pending refused", domain.StatusRejected, DetailsPatch{Status: str("pending")}, domain.ErrInvalidTransition, domain.StatusRejected, 0, false},
		{"unknown status", domain.StatusPending, DetailsPatch{Status: str("archived")}, domain.ErrInvalidStatus, domain.StatusPending, 0, false},
		{"notes only", domain.StatusPending, DetailsPatch{Notes: str("call founder")}, nil, domain.StatusPending, 0, true},
		{"empty patch", domain.StatusPending, DetailsPatch{}, ErrEmptyPatch, domain.StatusPending, 0, false},
		{"notes too long", domain.StatusPending, DetailsPatch{Notes: str(strings.Repeat("n", domain.MaxNotesLength+1))}, domain.ErrInvalid, domain.StatusPending, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &domain.Application{ApplicationID: knownID, Status: tt.start}
			saved := false
			repo := &applicationmock.Repo{
				GetByApplicationIDForUpdateFn: func(context.Context, string) (*domain.Application, error) { return row, nil },
				SaveFn: func(context.Context, *domain.Application) error {
					saved = true
					return nil
				},
			}
			n := &recNotifier{}
			uc := NewUsecase(repo, uowmock.Passthrough(uow.Repos{Applications: repo}), newMemFiles(), n, nil)

			dto, err := uc.UpdateDetails(context.Background(), knownID, tt.patch)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected err: %v", err)
			} else if dto.Status != string(tt.wantStatus) {
				t.Fatalf("dto status = %s, want %s", dto.Status, tt.wantStatus)
			}
			if row.Status != tt.wantStatus {
				t.Fatalf("row status = %s, want %s", row.Status, tt.wantStatus)
			}
			if saved != tt.wantSaveRun {
				t.Fatalf("save called = %v, want %v", saved, tt.wantSaveRun)
			}
			if len(n.changed) != tt.wantNotify {
				t.Fatalf("notifications = %d, want %d", len(n.changed), tt.wantNotify)
			}
		})
	}
}

func TestUsecase_UpdateStatus_NotFound(t *testing.T) {
	repo := &applicationmock.Repo{
		GetByApplicationIDForUpdateFn: func(context.Context, string) (*domain.Application, error) { return nil, domain.ErrNotFound },
	}
	uc := NewUsecase(repo, uowmock.Passthrough(uow.Repos{Applications: repo}), newMemFiles(), nil, nil)

	if _, err := uc.UpdateStatus(context.Background(), knownID, "approved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := uc.UpdateStatus(context.Background(), "123", "approved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("malformed id: want ErrNotFound, got %v", err)
	}
}

func TestUsecase_OpenPitchDeck(t *testing.T) {
	files := newMemFiles()
	files.data["key-deck.pdf"] = []byte("%PDF-")
	repo := &applicationmock.Repo{
		GetByApplicationIDFn: func(context.Context, string) (*domain.Application, error) {
			return &domain.Application{ApplicationID: knownID, PitchDeckName: "deck.pdf", PitchDeckPath: "key-deck.pdf", PitchDeckType: "application/pdf", PitchDeckSize: 5}, nil
		},
	}
	uc := NewUsecase(repo, uowmock.New(), files, nil, nil)

	f, err := uc.OpenPitchDeck(context.Background(), knownID)
	if err != nil {
		t.Fatalf("OpenPitchDeck: %v", err)
	}
	defer f.Body.Close()
	b, _ := io.ReadAll(f.Body)
	if string(b) != "%PDF-" || f.Name != "deck.pdf" || f.ContentType != "application/pdf" {
		t.Fatalf("unexpected file: %+v body=%q", f, b)
	}
}
