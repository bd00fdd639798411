package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	appDomain "accelerator-portal/internal/domain/application"
)

func TestApplicationRepository_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	a := makeApplication("Acme", time.Now())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == 0 {
		t.Fatalf("auto ID not set")
	}

	got, err := repo.GetByApplicationID(ctx, a.ApplicationID)
	if err != nil {
		t.Fatalf("GetByApplicationID: %v", err)
	}
	if got.StartupName != "Acme" || got.Status != appDomain.StatusPending {
		t.Fatalf("unexpected row: %+v", got)
	}
	if len(got.SupportNeeded) != 2 || got.SupportNeeded[1] != "Funding" {
		t.Fatalf("support set not round-tripped: %v", got.SupportNeeded)
	}
}

func TestApplicationRepository_GetNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewApplicationRepository(db)

	_, err := repo.GetByApplicationID(context.Background(), "00000000000000000000000000000000")
	if !errors.Is(err, appDomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = repo.GetByApplicationIDForUpdate(context.Background(), "00000000000000000000000000000000")
	if !errors.Is(err, appDomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for update, got %v", err)
	}
}

func TestApplicationRepository_ListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"Old", "Mid", "New"} {
		if err := repo.Create(ctx, makeApplication(name, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(list))
	}
	if list[0].StartupName != "New" || list[2].StartupName != "Old" {
		t.Fatalf("unexpected order: %s, %s, %s", list[0].StartupName, list[1].StartupName, list[2].StartupName)
	}
}

func TestApplicationRepository_Save(t *testing.T) {
	db := openTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	a := makeApplication("Beta", time.Now())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	a.Notes = "strong team"
	if _, err := a.Transition(appDomain.StatusApproved, time.Now()); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByApplicationID(ctx, a.ApplicationID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != appDomain.StatusApproved || got.Notes != "strong team" {
		t.Fatalf("update not persisted: status=%s notes=%q", got.Status, got.Notes)
	}
}

func TestApplicationRepository_TxRollback(t *testing.T) {
	db := openTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	a := makeApplication("Gamma", time.Now())
	sentinel := errors.New("boom")
	err := repo.Tx(ctx, func(r appDomain.Repository) error {
		if err := r.Create(ctx, a); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if _, err := repo.GetByApplicationID(ctx, a.ApplicationID); !errors.Is(err, appDomain.ErrNotFound) {
		t.Fatalf("expected row absent after rollback, got %v", err)
	}
}
