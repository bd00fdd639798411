package backend

import (
	"context"
	"errors"

	domain "accelerator-portal/internal/domain/application"
	appuc "accelerator-portal/internal/usecase/application"
	"accelerator-portal/internal/usecase/analytics"

	"go.uber.org/zap"
)

var _ Backend = (*Local)(nil)

// Local serves the contract in-process from the usecases.
type Local struct {
	apps      *appuc.Usecase
	analytics *analytics.Usecase
	log       *zap.Logger
}

func NewLocal(apps *appuc.Usecase, an *analytics.Usecase, log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{apps: apps, analytics: an, log: log}
}

func (l *Local) CreateApplication(ctx context.Context, s Submission) Result[Created] {
	out, err := l.apps.Create(ctx, s)
	if err != nil {
		return Fail[Created](l.message("create application", err))
	}
	l.analytics.Invalidate(ctx)
	return OK(*out)
}

func (l *Local) ListApplications(ctx context.Context) Result[[]Application] {
	out, err := l.apps.List(ctx)
	if err != nil {
		return Fail[[]Application](l.message("list applications", err))
	}
	return OK(out)
}

func (l *Local) GetApplicationByID(ctx context.Context, id string) Result[Application] {
	out, err := l.apps.Get(ctx, id)
	if err != nil {
		return Fail[Application](l.message("get application", err))
	}
	return OK(*out)
}

func (l *Local) UpdateApplicationStatus(ctx context.Context, id, status string) Result[struct{}] {
	if _, err := l.apps.UpdateStatus(ctx, id, status); err != nil {
		return Fail[struct{}](l.message("update status", err))
	}
	l.analytics.Invalidate(ctx)
	return OK(struct{}{})
}

func (l *Local) UpdateApplicationDetails(ctx context.Context, id string, p DetailsPatch) Result[struct{}] {
	if _, err := l.apps.UpdateDetails(ctx, id, p); err != nil {
		return Fail[struct{}](l.message("update details", err))
	}
	l.analytics.Invalidate(ctx)
	return OK(struct{}{})
}

func (l *Local) GetApplicationAnalytics(ctx context.Context) Result[Analytics] {
	out, err := l.analytics.Snapshot(ctx)
	if err != nil {
		return Fail[Analytics](l.message("analytics", err))
	}
	return OK(*out)
}

// message maps domain errors to user-facing text; anything else is logged
// and reported generically.
func (l *Local) message(op string, err error) string {
	if msg, ok := Message(err); ok {
		return msg
	}
	l.log.Error("backend: "+op, zap.Error(err))
	return MsgUnexpected
}

// Message returns the public text for known domain errors.
func Message(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Application not found", true
	case errors.Is(err, domain.ErrInvalidTransition):
		return "This status change is not allowed", true
	case errors.Is(err, domain.ErrInvalidStatus):
		return "Invalid status", true
	case errors.Is(err, domain.ErrInvalid):
		return err.Error(), true
	}
	return "", false
}
