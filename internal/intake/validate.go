package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	domain "accelerator-portal/internal/domain/application"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a form field key to its first error message.
type FieldErrors map[string]string

func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

var rePhone = regexp.MustCompile(`^[+0-9 ()-]{7,20}$`)

var labels = map[string]string{
	"email":              "Email",
	"phone":              "Phone number",
	"website":            "Website",
	"startupName":        "Startup name",
	"teamSize":           "Team size",
	"sector":             "Sector",
	"description":        "Description",
	"problem":            "Problem",
	"differentiation":    "Differentiation",
	"potentialCustomers": "Potential customers",
	"milestones":         "Milestones",
	"activeCustomers":    "Active customers",
	"progress":           "Progress",
	"supportNeeded":      "Support needed",
	"investmentAmount":   "Investment amount",
	"investmentType":     "Investment type",
	"valuation":          "Valuation",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		if err := registerRules(v, rules()); err != nil {
			panic(err)
		}
		v.RegisterStructValidation(fundingDetails, Form{})
		validate = v
	})
	return validate
}

func rules() map[string]validator.Func {
	return map[string]validator.Func{
		"teamsize": func(fl validator.FieldLevel) bool { return domain.IsTeamSize(fl.Field().String()) },
		"sector":   func(fl validator.FieldLevel) bool { return domain.IsSector(fl.Field().String()) },
		"support":  func(fl validator.FieldLevel) bool { return domain.IsSupportOption(fl.Field().String()) },
		"invtype":  func(fl validator.FieldLevel) bool { return domain.IsInvestmentType(fl.Field().String()) },
		"phone": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return rePhone.MatchString(s) && strings.ContainsAny(s, "0123456789")
		},
		"notblank": func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
		"textmin":  textMin,
	}
}

// registerRules registers every rule and reports all failures together.
func registerRules(v *validator.Validate, rs map[string]validator.Func) error {
	var errs []error
	for tag, fn := range rs {
		if err := v.RegisterValidation(tag, fn); err != nil {
			errs = append(errs, fmt.Errorf("intake: register %q: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

// textMin counts the characters of the trimmed text against the tag param.
func textMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
}

// fundingDetails: a secured round needs both amount and type; the error is
// reported on investmentAmount.
func fundingDetails(sl validator.StructLevel) {
	f := sl.Current().Interface().(Form)
	if !f.FundingSecured {
		return
	}
	if strings.TrimSpace(f.InvestmentAmount) == "" || strings.TrimSpace(f.InvestmentType) == "" {
		sl.ReportError(f.InvestmentAmount, "investmentAmount", "InvestmentAmount", "fundingdetails", "")
	}
}

// Validate returns the per-field errors of f; an empty map means submittable.
func Validate(f Form) FieldErrors {
	out := FieldErrors{}
	if err := engine().Struct(f); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			out["_"] = err.Error()
			return out
		}
		for _, e := range ve {
			key := fieldKey(e.Field())
			if _, seen := out[key]; seen {
				continue
			}
			out[key] = message(key, e)
		}
	}
	if msg := checkPitchDeck(f.PitchDeck); msg != "" {
		out["pitchDeck"] = msg
	}
	for k, msg := range f.parseErrs {
		out[k] = msg
	}
	return out
}

// ValidateField validates f and returns the message for one field, "" when
// the field is valid.
func ValidateField(f Form, field string) string {
	return Validate(f)[field]
}

// KnownField reports whether field is a form field key Validate can report.
func KnownField(field string) bool {
	_, ok := labels[field]
	return ok || field == "pitchDeck"
}

func fieldKey(field string) string {
	if i := strings.IndexByte(field, '['); i >= 0 {
		return field[:i]
	}
	return field
}

func message(key string, e validator.FieldError) string {
	label := labels[key]
	if label == "" {
		label = key
	}
	switch e.Tag() {
	case "required", "notblank":
		if key == "supportNeeded" {
			return "Select at least one support option"
		}
		return label + " is required"
	case "min", "textmin":
		if key == "supportNeeded" {
			return "Select at least one support option"
		}
		return fmt.Sprintf("%s must be at least %s characters", label, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, e.Param())
	case "email":
		return "Enter a valid email address"
	case "phone":
		return "Enter a valid phone number"
	case "url":
		return "Enter a valid URL, including http:// or https://"
	case "teamsize":
		return "Select a team size"
	case "sector":
		return "Select a sector"
	case "support":
		return "Unknown support option"
	case "invtype":
		return "Select an investment type"
	case "gte", "lte":
		if key == "progress" {
			return "Progress must be between 1 and 10"
		}
		return label + " cannot be negative"
	case "fundingdetails":
		return "Investment amount and type are required when funding is secured"
	}
	return label + " is invalid"
}

const pdfMagic = "%PDF-"

func checkPitchDeck(f *File) string {
	switch {
	case f == nil || f.Size <= 0:
		return "Pitch deck is required"
	case f.Size > domain.MaxPitchDeckBytes:
		return "Pitch deck must be 10MB or smaller"
	case !domain.IsPitchDeckType(f.ContentType):
		return "Pitch deck must be a PDF, PPT or PPTX file"
	}
	if f.ContentType == "application/pdf" && f.Open != nil {
		rc, err := f.Open()
		if err != nil {
			return "Pitch deck could not be read"
		}
		defer rc.Close()
		head := make([]byte, len(pdfMagic))
		if _, err := io.ReadFull(rc, head); err != nil || !bytes.Equal(head, []byte(pdfMagic)) {
			return "Pitch deck does not look like a PDF file"
		}
	}
	return ""
}
