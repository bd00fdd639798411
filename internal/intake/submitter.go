package intake

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"accelerator-portal/internal/backend"
	"accelerator-portal/internal/inflight"
	"accelerator-portal/internal/observability"

	"go.uber.org/zap"
)

var ErrSubmitInFlight = errors.New("intake: a submission for this form is already in progress")

const ConfirmationPath = "/apply/confirmation"

// Outcome of one submit action. Exactly one of Redirect, Errors or FormError
// is set.
type Outcome struct {
	Redirect  string
	Errors    FieldErrors
	FormError string
	Created   *backend.Created
}

type Submitter struct {
	be    backend.Backend
	guard *inflight.Guard
	log   *zap.Logger
}

func NewSubmitter(be backend.Backend, guard *inflight.Guard, log *zap.Logger) *Submitter {
	if guard == nil {
		guard = inflight.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{be: be, guard: guard, log: log}
}

// Submit validates f and, when valid, calls CreateApplication once. A second
// Submit for the same form while the first is pending gets ErrSubmitInFlight.
func (s *Submitter) Submit(ctx context.Context, f Form) (Outcome, error) {
	if errs := Validate(f); !errs.Empty() {
		observability.SubmissionsRejected.WithLabelValues("validation").Inc()
		return Outcome{Errors: errs}, nil
	}

	release, ok := s.guard.TryAcquire(submitKey(f))
	if !ok {
		observability.SubmissionsRejected.WithLabelValues("in_flight").Inc()
		return Outcome{}, ErrSubmitInFlight
	}
	defer release()

	res := s.be.CreateApplication(ctx, f.Input())
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = backend.MsgUnexpected
		}
		observability.SubmissionsRejected.WithLabelValues("backend").Inc()
		s.log.Warn("intake: create application failed", zap.String("startup", f.StartupName), zap.String("message", msg))
		return Outcome{FormError: msg}, nil
	}
	return Outcome{Redirect: ConfirmationURL(f), Created: res.Data}, nil
}

func submitKey(f Form) string {
	if f.SubmissionToken != "" {
		return "submit:" + f.SubmissionToken
	}
	return "submit:" + strings.ToLower(f.Email) + "|" + strings.ToLower(f.StartupName)
}

// ConfirmationURL carries the non-sensitive subset of f, in a fixed order.
func ConfirmationURL(f Form) string {
	var b strings.Builder
	b.WriteString(ConfirmationPath)
	sep := byte('?')
	add := func(k, v string) {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	add("startup", f.StartupName)
	add("email", f.Email)
	add("phone", f.Phone)
	add("teamSize", f.TeamSize)
	add("sector", f.Sector)
	if f.Website != "" {
		add("website", f.Website)
	}
	return b.String()
}
