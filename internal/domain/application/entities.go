package application

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("application not found")
	ErrInvalidStatus     = errors.New("invalid application status")
	ErrInvalidTransition = errors.New("application not in a state that allows this transition")
	ErrInvalid           = errors.New("invalid application")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Enumerations offered by the intake form.
var (
	TeamSizes       = []string{"1", "2", "3", "4", "5", "6", ">6"}
	Sectors         = []string{"E-commerce", "Fintech", "Agriculture", "Technology", "Health", "Education", "Logistics", "Other"}
	SupportOptions  = []string{"Funding", "Resources", "Mentorship", "Marketing"}
	InvestmentTypes = []string{"Equity seed funding", "Grant or non-dilutive funding"}
)

// Pitch deck constraints.
const MaxPitchDeckBytes int64 = 10 * 1024 * 1024

var PitchDeckTypes = []string{
	"application/pdf",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

func IsTeamSize(s string) bool       { return oneOf(TeamSizes, s) }
func IsSector(s string) bool         { return oneOf(Sectors, s) }
func IsSupportOption(s string) bool  { return oneOf(SupportOptions, s) }
func IsInvestmentType(s string) bool { return oneOf(InvestmentTypes, s) }
func IsPitchDeckType(s string) bool  { return oneOf(PitchDeckTypes, s) }

func oneOf(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// SupportSet is stored as a comma separated column.
type SupportSet []string

func (s SupportSet) Value() (driver.Value, error) { return strings.Join(s, ","), nil }

func (s *SupportSet) Scan(v any) error {
	var raw string
	switch x := v.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = x
	case []byte:
		raw = string(x)
	default:
		return fmt.Errorf("support set: unsupported type %T", v)
	}
	if raw == "" {
		*s = SupportSet{}
		return nil
	}
	*s = strings.Split(raw, ",")
	return nil
}

// Table: applications
type Application struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Public identifier (32-char lowercase hex)
	ApplicationID string `gorm:"column:application_id;size:32;not null;uniqueIndex:ux_applications_application_id"`

	Email   string `gorm:"column:email;size:254;not null;index"`
	Phone   string `gorm:"column:phone;size:32;not null"`
	Website string `gorm:"column:website;size:255"`

	StartupName string `gorm:"column:startup_name;size:120;not null"`
	TeamSize    string `gorm:"column:team_size;size:8;not null"`
	Sector      string `gorm:"column:sector;size:32;not null;index"`

	Description        string `gorm:"column:description;type:text;not null"`
	Problem            string `gorm:"column:problem;type:text;not null"`
	Differentiation    string `gorm:"column:differentiation;type:text;not null"`
	PotentialCustomers string `gorm:"column:potential_customers;type:text;not null"`
	Milestones         string `gorm:"column:milestones;type:text;not null"`

	Validated       bool `gorm:"column:validated"`
	ActiveCustomers int  `gorm:"column:active_customers"`
	Progress        int  `gorm:"column:progress;default:1"`

	SupportNeeded    SupportSet `gorm:"column:support_needed;type:varchar(255)"`
	FundingSecured   bool       `gorm:"column:funding_secured"`
	InvestmentAmount string     `gorm:"column:investment_amount;size:64"`
	InvestmentType   string     `gorm:"column:investment_type;size:64"`
	Valuation        string     `gorm:"column:valuation;size:64"`

	PitchDeckName string `gorm:"column:pitch_deck_name;size:255"`
	PitchDeckPath string `gorm:"column:pitch_deck_path;size:255"`
	PitchDeckType string `gorm:"column:pitch_deck_type;size:128"`
	PitchDeckSize int64  `gorm:"column:pitch_deck_size"`

	Status          Status         `gorm:"column:status;type:varchar(16);not null;default:'pending';index"`
	Notes           string         `gorm:"column:notes;type:text"`
	SubmissionDate  time.Time      `gorm:"column:submission_date;not null;index"`
	StatusUpdatedAt time.Time      `gorm:"column:status_updated_at"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Application) TableName() string { return "applications" }

const MaxNotesLength = 5000

// Transition moves the application to status to. Same-status writes report
// changed=false; nothing ever goes back to pending.
func (a *Application) Transition(to Status, at time.Time) (changed bool, err error) {
	if !to.Valid() {
		return false, ErrInvalidStatus
	}
	if a.Status == to {
		return false, nil
	}
	if to == StatusPending {
		return false, ErrInvalidTransition
	}
	a.Status = to
	a.StatusUpdatedAt = at.UTC()
	return true, nil
}

// CheckInvariants enforces the record-level rules every persisted application
// must satisfy, independent of which transport produced it.
func (a *Application) CheckInvariants() error {
	switch {
	case strings.TrimSpace(a.StartupName) == "":
		return fmt.Errorf("%w: startup name is required", ErrInvalid)
	case strings.TrimSpace(a.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalid)
	case !IsTeamSize(a.TeamSize):
		return fmt.Errorf("%w: team size %q", ErrInvalid, a.TeamSize)
	case !IsSector(a.Sector):
		return fmt.Errorf("%w: sector %q", ErrInvalid, a.Sector)
	case a.Progress < 1 || a.Progress > 10:
		return fmt.Errorf("%w: progress must be within 1..10", ErrInvalid)
	case a.ActiveCustomers < 0:
		return fmt.Errorf("%w: active customers must not be negative", ErrInvalid)
	case len(a.SupportNeeded) == 0:
		return fmt.Errorf("%w: support needed must not be empty", ErrInvalid)
	}
	for name, text := range map[string]string{
		"description":         a.Description,
		"problem":             a.Problem,
		"differentiation":     a.Differentiation,
		"potential customers": a.PotentialCustomers,
		"milestones":          a.Milestones,
	} {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, name)
		}
	}
	for _, s := range a.SupportNeeded {
		if !IsSupportOption(s) {
			return fmt.Errorf("%w: support option %q", ErrInvalid, s)
		}
	}
	hasFunding := a.InvestmentAmount != "" && a.InvestmentType != ""
	if a.FundingSecured != hasFunding {
		return fmt.Errorf("%w: investment amount and type must be set exactly when funding is secured", ErrInvalid)
	}
	if a.InvestmentType != "" && !IsInvestmentType(a.InvestmentType) {
		return fmt.Errorf("%w: investment type %q", ErrInvalid, a.InvestmentType)
	}
	if a.PitchDeckPath == "" || a.PitchDeckSize <= 0 || a.PitchDeckSize > MaxPitchDeckBytes || !IsPitchDeckType(a.PitchDeckType) {
		return fmt.Errorf("%w: pitch deck missing or not acceptable", ErrInvalid)
	}
	if a.Status != "" && !a.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
