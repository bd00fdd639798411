package uowmock

import (
	"context"
	"errors"
	"testing"

	"accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/domain/uow"
	"accelerator-portal/internal/testutil/applicationmock"
)

func TestUoW_WithinTx_Happy(t *testing.T) {
	ctx := context.Background()
	apps := &applicationmock.Repo{}
	repos := uow.Repos{Applications: apps}

	innerCalled := false
	m := &UoW{
		WithinTxFn: func(gotCtx context.Context, fn func(r uow.Repos) error) error {
			if gotCtx != ctx {
				t.Fatalf("WithinTx: ctx mismatch")
			}
			return fn(repos)
		},
	}
	err := m.WithinTx(ctx, func(r uow.Repos) error {
		innerCalled = true
		if r.Applications != apps {
			t.Fatalf("WithinTx: repos not forwarded")
		}
		return nil
	})
	if err != nil || !innerCalled {
		t.Fatalf("WithinTx: err=%v innerCalled=%v", err, innerCalled)
	}
}

func TestUoW_Default_Unimplemented(t *testing.T) {
	ctx := context.Background()
	m := &UoW{}
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx default: want errUnimplemented, got %v", err)
	}
	if err := m.WithinApplicationTx(ctx, "x", func(uow.Repos, *application.Application) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinApplicationTx default: want errUnimplemented, got %v", err)
	}
}

func TestUoW_Passthrough(t *testing.T) {
	ctx := context.Background()
	row := &application.Application{ApplicationID: "abc"}
	apps := &applicationmock.Repo{
		GetByApplicationIDForUpdateFn: func(_ context.Context, id string) (*application.Application, error) {
			if id != "abc" {
				return nil, application.ErrNotFound
			}
			return row, nil
		},
	}
	m := Passthrough(uow.Repos{Applications: apps})

	var got *application.Application
	if err := m.WithinApplicationTx(ctx, "abc", func(_ uow.Repos, a *application.Application) error {
		got = a
		return nil
	}); err != nil {
		t.Fatalf("WithinApplicationTx: %v", err)
	}
	if got != row {
		t.Fatalf("locked row not forwarded")
	}

	err := m.WithinApplicationTx(ctx, "missing", func(uow.Repos, *application.Application) error {
		t.Fatalf("callback should not run for missing row")
		return nil
	})
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUoW_FluentSetters_And_Reset(t *testing.T) {
	m := New()
	if m.WithinTxFn != nil || m.WithinApplicationTxFn != nil {
		t.Fatalf("New should start with nil funcs")
	}
	m.WithWithinTx(func(context.Context, func(uow.Repos) error) error { return nil }).
		WithWithinApplicationTx(func(context.Context, string, func(uow.Repos, *application.Application) error) error { return nil })
	if m.WithinTxFn == nil || m.WithinApplicationTxFn == nil {
		t.Fatalf("fluent setters didn't assign funcs")
	}
	m.Reset()
	if m.WithinTxFn != nil || m.WithinApplicationTxFn != nil {
		t.Fatalf("Reset should clear function fields")
	}
}
