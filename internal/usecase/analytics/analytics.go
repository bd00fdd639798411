package analytics

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	domain "accelerator-portal/internal/domain/application"

	"go.uber.org/zap"
)

const (
	DailyWindow = 14
	RecentLimit = 5
	cacheKey    = "analytics:snapshot"
)

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Recent struct {
	ID             string    `json:"id"`
	StartupName    string    `json:"startupName"`
	Sector         string    `json:"sector"`
	Status         string    `json:"status"`
	SubmissionDate time.Time `json:"submissionDate"`
}

type Snapshot struct {
	Total                 int          `json:"total"`
	Approved              int          `json:"approved"`
	Pending               int          `json:"pending"`
	Rejected              int          `json:"rejected"`
	ApprovedPercent       float64      `json:"approvedPercent"`
	PendingPercent        float64      `json:"pendingPercent"`
	RejectedPercent       float64      `json:"rejectedPercent"`
	DailySubmissions      []DailyCount `json:"dailySubmissions"`
	AverageTeamSize       float64      `json:"averageTeamSize"`
	TotalFundingRequested float64      `json:"totalFundingRequested"`
	TopSector             string       `json:"topSector"`
	Recent                []Recent     `json:"recent"`
	GeneratedAt           time.Time    `json:"generatedAt"`
}

// Cache is satisfied by infrastructure/cache.RedisCache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Usecase struct {
	repo  domain.Repository
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewUsecase; a nil cache or zero ttl disables caching.
func NewUsecase(r domain.Repository, c Cache, ttl time.Duration, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{repo: r, cache: c, ttl: ttl, log: log, now: time.Now}
}

func (u *Usecase) Snapshot(ctx context.Context) (*Snapshot, error) {
	caching := u.cache != nil && u.ttl > 0
	if caching {
		if b, ok, err := u.cache.Get(ctx, cacheKey); err != nil {
			u.log.Warn("analytics cache get", zap.Error(err))
		} else if ok {
			var s Snapshot
			if err := json.Unmarshal(b, &s); err == nil {
				return &s, nil
			}
		}
	}

	apps, err := u.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s := Compute(apps, u.now())

	if caching {
		if b, err := json.Marshal(s); err == nil {
			if err := u.cache.Set(ctx, cacheKey, b, u.ttl); err != nil {
				u.log.Warn("analytics cache set", zap.Error(err))
			}
		}
	}
	return &s, nil
}

// Invalidate drops the cached snapshot after a write.
func (u *Usecase) Invalidate(ctx context.Context) {
	if u.cache == nil || u.ttl <= 0 {
		return
	}
	if err := u.cache.Delete(ctx, cacheKey); err != nil {
		u.log.Warn("analytics cache delete", zap.Error(err))
	}
}

// Compute derives the snapshot from the full collection. Days are UTC.
func Compute(apps []domain.Application, now time.Time) Snapshot {
	now = now.UTC()
	s := Snapshot{Total: len(apps), GeneratedAt: now}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(DailyWindow - 1))
	daily := make(map[string]int, DailyWindow)

	sectors := map[string]int{}
	teamTotal, teamN := 0, 0

	for i := range apps {
		a := &apps[i]
		switch a.Status {
		case domain.StatusApproved:
			s.Approved++
		case domain.StatusRejected:
			s.Rejected++
		default:
			s.Pending++
		}
		if d := a.SubmissionDate.UTC(); !d.Before(first) && d.Before(today.AddDate(0, 0, 1)) {
			daily[d.Format("2006-01-02")]++
		}
		if n, ok := teamSizeValue(a.TeamSize); ok {
			teamTotal += n
			teamN++
		}
		if a.FundingSecured {
			s.TotalFundingRequested += parseAmount(a.InvestmentAmount)
		}
		if a.Sector != "" {
			sectors[a.Sector]++
		}
	}

	s.ApprovedPercent = percent(s.Approved, s.Total)
	s.PendingPercent = percent(s.Pending, s.Total)
	s.RejectedPercent = percent(s.Rejected, s.Total)
	if teamN > 0 {
		s.AverageTeamSize = round1(float64(teamTotal) / float64(teamN))
	}

	s.DailySubmissions = make([]DailyCount, 0, DailyWindow)
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		s.DailySubmissions = append(s.DailySubmissions, DailyCount{Date: key, Count: daily[key]})
	}

	best := 0
	for name, n := range sectors {
		if n > best || (n == best && name < s.TopSector) {
			best, s.TopSector = n, name
		}
	}

	sorted := make([]*domain.Application, 0, len(apps))
	for i := range apps {
		sorted = append(sorted, &apps[i])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmissionDate.After(sorted[j].SubmissionDate)
	})
	s.Recent = make([]Recent, 0, RecentLimit)
	for _, a := range sorted {
		if len(s.Recent) == RecentLimit {
			break
		}
		s.Recent = append(s.Recent, Recent{
			ID:             a.ApplicationID,
			StartupName:    a.StartupName,
			Sector:         a.Sector,
			Status:         string(a.Status),
			SubmissionDate: a.SubmissionDate,
		})
	}
	return s
}

func teamSizeValue(s string) (int, bool) {
	if s == ">6" {
		return 7, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseAmount accepts plain or thousands-separated numbers, optionally with a
// leading currency symbol; anything else counts as zero.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(n) * 100 / float64(total))
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
