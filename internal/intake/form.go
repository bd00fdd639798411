package intake

import (
	"io"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	appuc "accelerator-portal/internal/usecase/application"
)

// File is an uploaded pitch deck. Open is nil when only metadata is known.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func FileFromHeader(fh *multipart.FileHeader) *File {
	return &File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// Form is the founder-facing intake record. The form tags double as the
// field keys used in error maps and in the transport payload.
type Form struct {
	Email   string `form:"email" validate:"required,email,max=254"`
	Phone   string `form:"phone" validate:"required,phone"`
	Website string `form:"website" validate:"omitempty,url,max=255"`

	StartupName string `form:"startupName" validate:"required,max=120"`
	TeamSize    string `form:"teamSize" validate:"required,teamsize"`
	Sector      string `form:"sector" validate:"required,sector"`

	Description        string `form:"description" validate:"required,notblank,textmin=80,max=2000"`
	Problem            string `form:"problem" validate:"required,notblank,max=1000"`
	Differentiation    string `form:"differentiation" validate:"required,notblank,max=1000"`
	PotentialCustomers string `form:"potentialCustomers" validate:"required,notblank,max=1000"`
	Milestones         string `form:"milestones" validate:"required,notblank,max=1000"`

	Validated       bool `form:"validated"`
	ActiveCustomers int  `form:"activeCustomers" validate:"gte=0"`
	Progress        int  `form:"progress" validate:"gte=1,lte=10"`

	SupportNeeded    []string `form:"supportNeeded" validate:"required,min=1,dive,support"`
	FundingSecured   bool     `form:"fundingSecured"`
	InvestmentAmount string   `form:"investmentAmount" validate:"max=64"`
	InvestmentType   string   `form:"investmentType" validate:"omitempty,invtype"`
	Valuation        string   `form:"valuation" validate:"max=64"`

	PitchDeck *File `form:"pitchDeck" validate:"-"`

	// SubmissionToken is minted per render and lets the server collapse
	// double-posts of the same form.
	SubmissionToken string `form:"submissionToken" validate:"-"`

	parseErrs FieldErrors
}

// Reset is the initial state of the form.
func Reset() Form {
	return Form{Progress: 1, SupportNeeded: []string{}}
}

// ParseValues reads the text fields of a submitted form. Values that cannot
// be parsed are reported by Validate under their field key.
func ParseValues(v url.Values) Form {
	f := Reset()
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }

	f.Email = get("email")
	f.Phone = get("phone")
	f.Website = get("website")
	f.StartupName = get("startupName")
	f.TeamSize = get("teamSize")
	f.Sector = get("sector")
	f.Description = v.Get("description")
	f.Problem = v.Get("problem")
	f.Differentiation = v.Get("differentiation")
	f.PotentialCustomers = v.Get("potentialCustomers")
	f.Milestones = v.Get("milestones")
	f.Validated = checked(v.Get("validated"))
	f.FundingSecured = checked(v.Get("fundingSecured"))
	f.InvestmentAmount = get("investmentAmount")
	f.InvestmentType = get("investmentType")
	f.Valuation = get("valuation")
	f.SubmissionToken = get("submissionToken")

	for _, s := range v["supportNeeded"] {
		if s = strings.TrimSpace(s); s != "" {
			f.SupportNeeded = append(f.SupportNeeded, s)
		}
	}

	if raw := get("activeCustomers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			f.addParseErr("activeCustomers", "Active customers must be a whole number")
		}
		f.ActiveCustomers = n
	}
	if raw := get("progress"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			f.addParseErr("progress", "Progress must be a whole number between 1 and 10")
		} else {
			f.Progress = n
		}
	}
	return f
}

// ParseMultipart reads a multipart form including the pitchDeck file part.
func ParseMultipart(mf *multipart.Form) Form {
	f := ParseValues(url.Values(mf.Value))
	if fhs := mf.File["pitchDeck"]; len(fhs) > 0 {
		f.PitchDeck = FileFromHeader(fhs[0])
	}
	return f
}

func (f *Form) addParseErr(field, msg string) {
	if f.parseErrs == nil {
		f.parseErrs = FieldErrors{}
	}
	f.parseErrs[field] = msg
}

func checked(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Supports reports whether opt is among the selected support options.
func (f Form) Supports(opt string) bool {
	for _, s := range f.SupportNeeded {
		if s == opt {
			return true
		}
	}
	return false
}

// Input converts a validated form into the creation payload.
func (f Form) Input() appuc.CreateInput {
	in := appuc.CreateInput{
		Email:              f.Email,
		Phone:              f.Phone,
		Website:            f.Website,
		StartupName:        f.StartupName,
		TeamSize:           f.TeamSize,
		Sector:             f.Sector,
		Description:        f.Description,
		Problem:            f.Problem,
		Differentiation:    f.Differentiation,
		PotentialCustomers: f.PotentialCustomers,
		Milestones:         f.Milestones,
		Validated:          f.Validated,
		ActiveCustomers:    f.ActiveCustomers,
		Progress:           f.Progress,
		SupportNeeded:      append([]string{}, f.SupportNeeded...),
		FundingSecured:     f.FundingSecured,
		InvestmentAmount:   f.InvestmentAmount,
		InvestmentType:     f.InvestmentType,
		Valuation:          f.Valuation,
	}
	if f.PitchDeck != nil {
		in.PitchDeck = appuc.Upload{
			Name:        f.PitchDeck.Name,
			ContentType: f.PitchDeck.ContentType,
			Size:        f.PitchDeck.Size,
			Open:        f.PitchDeck.Open,
		}
	}
	return in
}
