package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/domain/uow"
	"accelerator-portal/internal/observability"
	"accelerator-portal/pkg/id"

	"go.uber.org/zap"
)

var ErrEmptyPatch = fmt.Errorf("%w: nothing to update", domain.ErrInvalid)

type Usecase struct {
	repo     domain.Repository
	uow      uow.UnitOfWork
	files    FileStore
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewUsecase wires the application flows. notifier and log may be nil.
func NewUsecase(r domain.Repository, tx uow.UnitOfWork, files FileStore, notifier Notifier, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{repo: r, uow: tx, files: files, notifier: notifier, log: log, now: time.Now}
}

func (u *Usecase) Create(ctx context.Context, in CreateInput) (*CreatedDTO, error) {
	deck := in.PitchDeck
	switch {
	case deck.Open == nil || deck.Size <= 0:
		return nil, fmt.Errorf("%w: pitch deck is required", domain.ErrInvalid)
	case deck.Size > domain.MaxPitchDeckBytes:
		return nil, fmt.Errorf("%w: pitch deck exceeds %d bytes", domain.ErrInvalid, domain.MaxPitchDeckBytes)
	case !domain.IsPitchDeckType(deck.ContentType):
		return nil, fmt.Errorf("%w: pitch deck type %q", domain.ErrInvalid, deck.ContentType)
	}

	now := u.now().UTC()
	a := &domain.Application{
		ApplicationID:      id.NewID32(),
		Email:              strings.TrimSpace(in.Email),
		Phone:              strings.TrimSpace(in.Phone),
		Website:            strings.TrimSpace(in.Website),
		StartupName:        strings.TrimSpace(in.StartupName),
		TeamSize:           in.TeamSize,
		Sector:             in.Sector,
		Description:        in.Description,
		Problem:            in.Problem,
		Differentiation:    in.Differentiation,
		PotentialCustomers: in.PotentialCustomers,
		Milestones:         in.Milestones,
		Validated:          in.Validated,
		ActiveCustomers:    in.ActiveCustomers,
		Progress:           in.Progress,
		SupportNeeded:      domain.SupportSet(in.SupportNeeded),
		FundingSecured:     in.FundingSecured,
		InvestmentAmount:   strings.TrimSpace(in.InvestmentAmount),
		InvestmentType:     in.InvestmentType,
		Valuation:          strings.TrimSpace(in.Valuation),
		PitchDeckName:      deck.Name,
		PitchDeckType:      deck.ContentType,
		PitchDeckSize:      deck.Size,
		Status:             domain.StatusPending,
		SubmissionDate:     now,
		StatusUpdatedAt:    now,
	}
	if a.Progress == 0 {
		a.Progress = 1
	}
	if !a.FundingSecured {
		a.InvestmentAmount, a.InvestmentType = "", ""
	}

	body, err := deck.Open()
	if err != nil {
		return nil, fmt.Errorf("open pitch deck: %w", err)
	}
	key, err := u.files.Put(ctx, deck.Name, body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("store pitch deck: %w", err)
	}
	a.PitchDeckPath = key

	if err := a.CheckInvariants(); err != nil {
		u.discard(ctx, key)
		return nil, err
	}
	if err := u.repo.Create(ctx, a); err != nil {
		u.discard(ctx, key)
		return nil, err
	}

	observability.ApplicationsSubmitted.WithLabelValues(a.Sector).Inc()
	u.log.Info("application created",
		zap.String("application_id", a.ApplicationID),
		zap.String("sector", a.Sector),
	)
	if u.notifier != nil {
		if err := u.notifier.ApplicationReceived(ctx, a); err != nil {
			u.log.Warn("notify application received", zap.String("application_id", a.ApplicationID), zap.Error(err))
		}
	}
	return &CreatedDTO{ID: a.ApplicationID, SubmissionDate: a.SubmissionDate}, nil
}

// List returns every application, newest submission first.
func (u *Usecase) List(ctx context.Context) ([]ApplicationDTO, error) {
	rows, err := u.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ApplicationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (u *Usecase) Get(ctx context.Context, applicationID string) (*ApplicationDTO, error) {
	if !id.IsID32(applicationID) {
		return nil, domain.ErrNotFound
	}
	a, err := u.repo.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	dto := toDTO(a)
	return &dto, nil
}

func (u *Usecase) UpdateStatus(ctx context.Context, applicationID, status string) (*ApplicationDTO, error) {
	return u.UpdateDetails(ctx, applicationID, DetailsPatch{Status: &status})
}

// UpdateDetails applies a status and/or notes change under a row lock.
// Concurrent writers serialize; the last one to commit wins.
func (u *Usecase) UpdateDetails(ctx context.Context, applicationID string, p DetailsPatch) (*ApplicationDTO, error) {
	if p.Status == nil && p.Notes == nil {
		return nil, ErrEmptyPatch
	}
	var to domain.Status
	if p.Status != nil {
		s, err := domain.ParseStatus(*p.Status)
		if err != nil {
			return nil, err
		}
		to = s
	}
	if p.Notes != nil && utf8.RuneCountInString(*p.Notes) > domain.MaxNotesLength {
		return nil, fmt.Errorf("%w: notes exceed %d characters", domain.ErrInvalid, domain.MaxNotesLength)
	}
	if !id.IsID32(applicationID) {
		return nil, domain.ErrNotFound
	}

	var (
		dto     ApplicationDTO
		changed bool
		saved   domain.Application
	)
	err := u.uow.WithinApplicationTx(ctx, applicationID, func(r uow.Repos, a *domain.Application) error {
		if to != "" {
			c, err := a.Transition(to, u.now())
			if err != nil {
				return err
			}
			changed = c
		}
		if p.Notes != nil {
			a.Notes = *p.Notes
		}
		if err := r.Applications.Save(ctx, a); err != nil {
			return err
		}
		dto = toDTO(a)
		saved = *a
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidTransition) {
			u.log.Error("update application", zap.String("application_id", applicationID), zap.Error(err))
		}
		return nil, err
	}

	if changed {
		observability.StatusChanges.WithLabelValues(string(to)).Inc()
		u.log.Info("application status changed",
			zap.String("application_id", applicationID),
			zap.String("status", string(to)),
		)
		if u.notifier != nil {
			if err := u.notifier.StatusChanged(ctx, &saved); err != nil {
				u.log.Warn("notify status changed", zap.String("application_id", applicationID), zap.Error(err))
			}
		}
	}
	return &dto, nil
}

func (u *Usecase) OpenPitchDeck(ctx context.Context, applicationID string) (*PitchDeckFile, error) {
	if !id.IsID32(applicationID) {
		return nil, domain.ErrNotFound
	}
	a, err := u.repo.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.PitchDeckPath == "" {
		return nil, domain.ErrNotFound
	}
	body, err := u.files.Open(ctx, a.PitchDeckPath)
	if err != nil {
		return nil, err
	}
	return &PitchDeckFile{Name: a.PitchDeckName, ContentType: a.PitchDeckType, Size: a.PitchDeckSize, Body: body}, nil
}

func (u *Usecase) discard(ctx context.Context, key string) {
	if err := u.files.Delete(ctx, key); err != nil {
		u.log.Warn("discard pitch deck", zap.String("key", key), zap.Error(err))
	}
}
