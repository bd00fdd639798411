package review

import (
	"context"
	"fmt"
	"time"

	"accelerator-portal/internal/backend"
	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/inflight"
	"accelerator-portal/internal/observability"
	"accelerator-portal/pkg/id"

	"go.uber.org/zap"
)

const (
	MsgInvalidID        = "Invalid application ID"
	msgDetailLoadFailed = "Failed to load application"
	msgStatusFailed     = "The status change could not be saved"
	msgNotesFailed      = "The notes could not be saved"
)

// Detail is the state of one application's review page.
type Detail struct {
	be    backend.Backend
	guard *inflight.Guard
	log   *zap.Logger

	App *backend.Application
	// Err is terminal: the page shows it with a link back to the listing.
	Err string
	// LastError is the flash for the most recent failed edit.
	LastError string

	EditingNotes bool
	NotesDraft   string
}

func NewDetail(be backend.Backend, guard *inflight.Guard, log *zap.Logger) *Detail {
	if guard == nil {
		guard = inflight.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Detail{be: be, guard: guard, log: log}
}

func (d *Detail) Load(ctx context.Context, applicationID string) error {
	d.App = nil
	if !id.IsID32(applicationID) {
		d.Err = MsgInvalidID
		return fmt.Errorf("%w: %s", ErrLoadFailed, MsgInvalidID)
	}
	res := d.be.GetApplicationByID(ctx, applicationID)
	if !res.Success || res.Data == nil {
		d.Err = res.Message
		if d.Err == "" {
			d.Err = msgDetailLoadFailed
		}
		d.log.Warn("review: get application failed", zap.String("application_id", applicationID), zap.String("message", res.Message))
		return fmt.Errorf("%w: %s", ErrLoadFailed, d.Err)
	}
	app := *res.Data
	if app.Notes == "" {
		app.Notes = app.AdminNote
	}
	d.App = &app
	d.Err = ""
	return nil
}

// SetStatus shows the new status immediately, then confirms it with the
// backend or restores the previous one.
func (d *Detail) SetStatus(ctx context.Context, status string) error {
	if d.App == nil {
		return ErrNotLoaded
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return err
	}
	release, ok := d.guard.TryAcquire("status:" + d.App.ID)
	if !ok {
		return ErrInFlight
	}
	defer release()

	prev := d.App.Status
	d.App.Status = string(st)
	d.LastError = ""

	s := string(st)
	res := d.be.UpdateApplicationDetails(ctx, d.App.ID, backend.DetailsPatch{Status: &s})
	if !res.Success {
		d.App.Status = prev
		d.LastError = flash(msgStatusFailed, res.Message)
		observability.OptimisticRollbacks.WithLabelValues("detail_status").Inc()
		d.log.Warn("review: status update reverted",
			zap.String("application_id", d.App.ID),
			zap.String("status", s),
			zap.String("message", res.Message),
		)
		return fmt.Errorf("%w: %s", ErrUpdateFailed, res.Message)
	}
	if prev != s {
		d.App.StatusUpdatedAt = time.Now().UTC()
	}
	return nil
}

// BeginEditNotes opens the editor seeded with the current note.
func (d *Detail) BeginEditNotes() {
	if d.App == nil {
		return
	}
	d.EditingNotes = true
	d.NotesDraft = d.App.Notes
}

func (d *Detail) CancelEditNotes() {
	d.EditingNotes = false
	d.NotesDraft = ""
}

// SaveNotes applies text optimistically. On failure the old note is restored
// and the editor re-opens holding text.
func (d *Detail) SaveNotes(ctx context.Context, text string) error {
	if d.App == nil {
		return ErrNotLoaded
	}
	release, ok := d.guard.TryAcquire("notes:" + d.App.ID)
	if !ok {
		return ErrInFlight
	}
	defer release()

	prev := d.App.Notes
	d.App.Notes = text
	d.App.AdminNote = text
	d.EditingNotes = false
	d.NotesDraft = ""
	d.LastError = ""

	res := d.be.UpdateApplicationDetails(ctx, d.App.ID, backend.DetailsPatch{Notes: &text})
	if !res.Success {
		d.App.Notes = prev
		d.App.AdminNote = prev
		d.EditingNotes = true
		d.NotesDraft = text
		d.LastError = flash(msgNotesFailed, res.Message)
		observability.OptimisticRollbacks.WithLabelValues("detail_notes").Inc()
		d.log.Warn("review: notes update reverted",
			zap.String("application_id", d.App.ID),
			zap.String("message", res.Message),
		)
		return fmt.Errorf("%w: %s", ErrUpdateFailed, res.Message)
	}
	return nil
}

type Event struct {
	Title       string
	Description string
	At          time.Time
}

// History is the two-fact timeline: submission, plus a status change dated
// today once the application has left pending.
func (d *Detail) History(now time.Time) []Event {
	if d.App == nil {
		return nil
	}
	out := []Event{{
		Title:       "Application submitted",
		Description: d.App.StartupName + " submitted an application",
		At:          d.App.SubmissionDate,
	}}
	if d.App.Status != string(domain.StatusPending) {
		out = append(out, Event{
			Title:       "Status changed",
			Description: "Application marked as " + d.App.Status,
			At:          now,
		})
	}
	return out
}

func flash(base, detail string) string {
	if detail == "" {
		return base
	}
	return base + ": " + detail
}
