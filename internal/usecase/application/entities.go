package application

import (
	"context"
	"io"
	"time"

	domain "accelerator-portal/internal/domain/application"
)

// Upload is the pitch deck as received from the applicant. Open may be called
// more than once.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type CreateInput struct {
	Email              string   `json:"email"`
	Phone              string   `json:"phone"`
	Website            string   `json:"website,omitempty"`
	StartupName        string   `json:"startupName"`
	TeamSize           string   `json:"teamSize"`
	Sector             string   `json:"sector"`
	Description        string   `json:"description"`
	Problem            string   `json:"problem"`
	Differentiation    string   `json:"differentiation"`
	PotentialCustomers string   `json:"potentialCustomers"`
	Milestones         string   `json:"milestones"`
	Validated          bool     `json:"validated"`
	ActiveCustomers    int      `json:"activeCustomers"`
	Progress           int      `json:"progress"`
	SupportNeeded      []string `json:"supportNeeded"`
	FundingSecured     bool     `json:"fundingSecured"`
	InvestmentAmount   string   `json:"investmentAmount,omitempty"`
	InvestmentType     string   `json:"investmentType,omitempty"`
	Valuation          string   `json:"valuation,omitempty"`
	PitchDeck          Upload   `json:"-"`
}

type CreatedDTO struct {
	ID             string    `json:"id"`
	SubmissionDate time.Time `json:"submissionDate"`
}

type PitchDeckDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type ApplicationDTO struct {
	ID                 string        `json:"id"`
	Email              string        `json:"email"`
	Phone              string        `json:"phone"`
	Website            string        `json:"website,omitempty"`
	StartupName        string        `json:"startupName"`
	TeamSize           string        `json:"teamSize"`
	Sector             string        `json:"sector"`
	Description        string        `json:"description"`
	Problem            string        `json:"problem"`
	Differentiation    string        `json:"differentiation"`
	PotentialCustomers string        `json:"potentialCustomers"`
	Milestones         string        `json:"milestones"`
	Validated          bool          `json:"validated"`
	ActiveCustomers    int           `json:"activeCustomers"`
	Progress           int           `json:"progress"`
	SupportNeeded      []string      `json:"supportNeeded"`
	FundingSecured     bool          `json:"fundingSecured"`
	InvestmentAmount   string        `json:"investmentAmount,omitempty"`
	InvestmentType     string        `json:"investmentType,omitempty"`
	Valuation          string        `json:"valuation,omitempty"`
	PitchDeck          *PitchDeckDTO `json:"pitchDeck,omitempty"`
	Status             string        `json:"status"`
	Notes              string        `json:"notes"`
	AdminNote          string        `json:"adminNote,omitempty"`
	SubmissionDate     time.Time     `json:"submissionDate"`
	StatusUpdatedAt    time.Time     `json:"statusUpdatedAt"`
}

// DetailsPatch carries the admin-editable fields; nil means unchanged.
type DetailsPatch struct {
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type PitchDeckFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// FileStore keeps pitch decks outside the database.
type FileStore interface {
	Put(ctx context.Context, name string, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type Notifier interface {
	ApplicationReceived(ctx context.Context, a *domain.Application) error
	StatusChanged(ctx context.Context, a *domain.Application) error
}

func toDTO(a *domain.Application) ApplicationDTO {
	dto := ApplicationDTO{
		ID:                 a.ApplicationID,
		Email:              a.Email,
		Phone:              a.Phone,
		Website:            a.Website,
		StartupName:        a.StartupName,
		TeamSize:           a.TeamSize,
		Sector:             a.Sector,
		Description:        a.Description,
		Problem:            a.Problem,
		Differentiation:    a.Differentiation,
		PotentialCustomers: a.PotentialCustomers,
		Milestones:         a.Milestones,
		Validated:          a.Validated,
		ActiveCustomers:    a.ActiveCustomers,
		Progress:           a.Progress,
		SupportNeeded:      append([]string{}, a.SupportNeeded...),
		FundingSecured:     a.FundingSecured,
		InvestmentAmount:   a.InvestmentAmount,
		InvestmentType:     a.InvestmentType,
		Valuation:          a.Valuation,
		Status:             string(a.Status),
		Notes:              a.Notes,
		AdminNote:          a.Notes,
		SubmissionDate:     a.SubmissionDate,
		StatusUpdatedAt:    a.StatusUpdatedAt,
	}
	if a.PitchDeckPath != "" {
		dto.PitchDeck = &PitchDeckDTO{Name: a.PitchDeckName, Type: a.PitchDeckType, Size: a.PitchDeckSize}
	}
	return dto
}
