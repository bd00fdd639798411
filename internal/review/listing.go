package review

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"accelerator-portal/internal/backend"
	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/inflight"
	"accelerator-portal/internal/observability"

	"go.uber.org/zap"
)

const (
	PageSize = 10
	All      = "all"
	Asc      = "asc"
	Desc     = "desc"
)

var (
	ErrInFlight      = errors.New("review: an update for this application is already in progress")
	ErrUpdateFailed  = errors.New("review: update failed")
	ErrLoadFailed    = errors.New("review: load failed")
	ErrNotLoaded     = errors.New("review: nothing loaded")
	ErrUnknownRecord = errors.New("review: application not in the loaded set")
)

const msgLoadFailed = "Failed to load applications"

// Query is the listing's view state as carried in the URL.
type Query struct {
	Status string
	Sector string
	Search string
	Order  string
	Page   int
}

func DefaultQuery() Query {
	return Query{Status: All, Sector: All, Order: Desc, Page: 1}
}

func ParseQuery(v url.Values) Query {
	q := DefaultQuery()
	if s := strings.ToLower(strings.TrimSpace(v.Get("status"))); s != "" {
		if st, err := domain.ParseStatus(s); err == nil {
			q.Status = string(st)
		}
	}
	if s := strings.TrimSpace(v.Get("sector")); s != "" && domain.IsSector(s) {
		q.Sector = s
	}
	q.Search = strings.TrimSpace(v.Get("q"))
	if strings.EqualFold(v.Get("order"), Asc) {
		q.Order = Asc
	}
	if p, err := strconv.Atoi(v.Get("page")); err == nil {
		q.Page = p
	}
	return q
}

// Values encodes q, omitting defaults.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Status != "" && q.Status != All {
		v.Set("status", q.Status)
	}
	if q.Sector != "" && q.Sector != All {
		v.Set("sector", q.Sector)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Order == Asc {
		v.Set("order", Asc)
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

func (q Query) WithPage(p int) Query { q.Page = p; return q }

// Page is one derived page of the listing.
type Page struct {
	Items      []backend.Application
	Total      int
	Page       int
	TotalPages int
	PageSize   int
}

func (p Page) HasPrev() bool { return p.Page > 1 }
func (p Page) HasNext() bool { return p.Page < p.TotalPages }

// Apply derives the visible page from the full collection. Steps run in a
// fixed order (status, sector, search, sort, paginate) so the result depends
// only on items and q.
func Apply(items []backend.Application, q Query) Page {
	needle := strings.ToLower(q.Search)
	filtered := make([]backend.Application, 0, len(items))
	for _, a := range items {
		if q.Status != "" && q.Status != All && a.Status != q.Status {
			continue
		}
		if q.Sector != "" && q.Sector != All && a.Sector != q.Sector {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.StartupName), needle) &&
			!strings.Contains(strings.ToLower(a.Email), needle) &&
			!strings.Contains(strings.ToLower(a.Sector), needle) {
			continue
		}
		filtered = append(filtered, a)
	}

	asc := q.Order == Asc
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := dateKey(filtered[i]), dateKey(filtered[j])
		if asc {
			return a < b
		}
		return b < a
	})

	total := len(filtered)
	pages := (total + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if end > total {
		end = total
	}
	return Page{
		Items:      filtered[start:end],
		Total:      total,
		Page:       page,
		TotalPages: pages,
		PageSize:   PageSize,
	}
}

// dateKey is the submission date as a fixed-width UTC string; comparing keys
// orders chronologically.
func dateKey(a backend.Application) string {
	return a.SubmissionDate.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Listing holds the fetched collection for one admin view.
type Listing struct {
	be    backend.Backend
	guard *inflight.Guard
	log   *zap.Logger

	Items   []backend.Application
	Loading bool
	Err     string
	loaded  bool
}

func NewListing(be backend.Backend, guard *inflight.Guard, log *zap.Logger) *Listing {
	if guard == nil {
		guard = inflight.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Listing{be: be, guard: guard, log: log}
}

// Load fetches the whole collection. On failure Err is set and Items keep
// whatever was loaded before.
func (l *Listing) Load(ctx context.Context) error {
	l.Loading = true
	defer func() { l.Loading = false }()

	res := l.be.ListApplications(ctx)
	if !res.Success || res.Data == nil {
		l.Err = msgLoadFailed
		l.log.Warn("review: list applications failed", zap.String("message", res.Message))
		return fmt.Errorf("%w: %s", ErrLoadFailed, res.Message)
	}
	l.Items = *res.Data
	l.Err = ""
	l.loaded = true
	return nil
}

// Retry is a full reload.
func (l *Listing) Retry(ctx context.Context) error { return l.Load(ctx) }

func (l *Listing) Loaded() bool { return l.loaded }

func (l *Listing) View(q Query) Page { return Apply(l.Items, q) }

// SetStatus changes one row optimistically and reverts it if the backend
// refuses. Re-entrant calls for the same id get ErrInFlight.
func (l *Listing) SetStatus(ctx context.Context, id, status string) error {
	st, err := domain.ParseStatus(status)
	if err != nil {
		return err
	}
	if !l.loaded {
		return ErrNotLoaded
	}
	idx := -1
	for i := range l.Items {
		if l.Items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownRecord
	}

	release, ok := l.guard.TryAcquire("status:" + id)
	if !ok {
		return ErrInFlight
	}
	defer release()

	prev := l.Items[idx].Status
	l.Items[idx].Status = string(st)

	res := l.be.UpdateApplicationStatus(ctx, id, string(st))
	if !res.Success {
		l.Items[idx].Status = prev
		observability.OptimisticRollbacks.WithLabelValues("listing_status").Inc()
		l.log.Warn("review: status update reverted",
			zap.String("application_id", id),
			zap.String("status", string(st)),
			zap.String("message", res.Message),
		)
		return fmt.Errorf("%w: %s", ErrUpdateFailed, res.Message)
	}
	l.Items[idx].StatusUpdatedAt = time.Now().UTC()
	return nil
}
