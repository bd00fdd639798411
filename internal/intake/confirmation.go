package intake

import (
	"net/url"
	"strings"
	"time"

	"accelerator-portal/pkg/id"
)

// Receipt defaults for parameters missing from the confirmation URL.
const (
	DefaultStartup  = "Your Startup"
	DefaultEmail    = "founder@example.com"
	DefaultPhone    = "+251-911-000-000"
	DefaultTeamSize = "3"
	DefaultSector   = "Technology"
)

// Confirmation is a display-only receipt. DisplayID and SubmittedAt are
// derived at render time and are not the stored application's values.
type Confirmation struct {
	Startup     string
	Email       string
	Phone       string
	Website     string
	TeamSize    string
	Sector      string
	DisplayID   string
	SubmittedAt time.Time
}

func ParseConfirmation(q url.Values, now time.Time) Confirmation {
	get := func(k, def string) string {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
		return def
	}
	return Confirmation{
		Startup:     get("startup", DefaultStartup),
		Email:       get("email", DefaultEmail),
		Phone:       get("phone", DefaultPhone),
		Website:     get("website", ""),
		TeamSize:    get("teamSize", DefaultTeamSize),
		Sector:      get("sector", DefaultSector),
		DisplayID:   id.DisplayID(now),
		SubmittedAt: now,
	}
}
