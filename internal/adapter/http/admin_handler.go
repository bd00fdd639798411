package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"accelerator-portal/internal/backend"
	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/inflight"
	"accelerator-portal/internal/review"
	appuc "accelerator-portal/internal/usecase/application"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DeckOpener streams a stored pitch deck. Satisfied by the application
// usecase and by the API client.
type DeckOpener interface {
	OpenPitchDeck(ctx context.Context, applicationID string) (*appuc.PitchDeckFile, error)
}

var adminNav = []NavLink{
	{Href: "/admin", Label: "Dashboard"},
	{Href: "/admin/applications", Label: "Applications"},
}

// Flash codes carried across the post/redirect/get round trip.
var adminFlashes = map[string]string{
	"status-failed":  "The status change could not be saved",
	"status-busy":    "An update for this application is already in progress",
	"status-invalid": "Invalid status",
	"status-unknown": "That application is no longer in the list",
}

const msgDeleteUnavailable = "Deleting applications is not available"

type AdminHandler struct {
	be    backend.Backend
	decks DeckOpener
	guard *inflight.Guard
	log   *zap.Logger
	now   func() time.Time
}

func NewAdminHandler(be backend.Backend, decks DeckOpener, guard *inflight.Guard, log *zap.Logger) *AdminHandler {
	if guard == nil {
		guard = inflight.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{be: be, decks: decks, guard: guard, log: log, now: time.Now}
}

func (h *AdminHandler) view(c echo.Context, title string, data any) View {
	who, _ := c.Get("admin").(string)
	return View{
		Title: title,
		Nav:   navFor(adminNav, c.Request().URL.Path, ""),
		Flash: adminFlashes[c.QueryParam("flash")],
		Admin: who,
		Data:  data,
	}
}

type dashboardView struct {
	Err      string
	Snapshot *backend.Analytics
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	res := h.be.GetApplicationAnalytics(c.Request().Context())
	v := dashboardView{Snapshot: res.Data}
	if !res.Success || res.Data == nil {
		h.log.Warn("admin: analytics unavailable", zap.String("message", res.Message))
		v = dashboardView{Err: "Failed to load analytics"}
	}
	return c.Render(http.StatusOK, "admin/dashboard", h.view(c, "Dashboard", v))
}

type listingView struct {
	Err         string
	Query       review.Query
	QueryString string
	PrevQuery   string
	NextQuery   string
	Page        review.Page
	Statuses    []string
	Sectors     []string
}

func (h *AdminHandler) Applications(c echo.Context) error {
	l := review.NewListing(h.be, h.guard, h.log)
	q := review.ParseQuery(c.QueryParams())
	v := listingView{
		Query:    q,
		Statuses: []string{string(domain.StatusPending), string(domain.StatusApproved), string(domain.StatusRejected)},
		Sectors:  domain.Sectors,
	}
	if err := l.Load(c.Request().Context()); err != nil {
		v.Err = l.Err
		v.QueryString = q.Values().Encode()
		return c.Render(http.StatusOK, "admin/applications", h.view(c, "Applications", v))
	}
	v.Page = l.View(q)
	q = q.WithPage(v.Page.Page)
	v.Query = q
	v.QueryString = q.Values().Encode()
	v.PrevQuery = q.WithPage(v.Page.Page - 1).Values().Encode()
	v.NextQuery = q.WithPage(v.Page.Page + 1).Values().Encode()
	return c.Render(http.StatusOK, "admin/applications", h.view(c, "Applications", v))
}

// QuickStatus is the listing's approve/reject action.
func (h *AdminHandler) QuickStatus(c echo.Context) error {
	ctx := c.Request().Context()
	back, _ := url.ParseQuery(c.FormValue("return"))
	if back == nil {
		back = url.Values{}
	}
	back.Del("flash")

	l := review.NewListing(h.be, h.guard, h.log)
	err := l.Load(ctx)
	if err == nil {
		err = l.SetStatus(ctx, c.Param("id"), c.FormValue("status"))
	}
	switch {
	case err == nil:
	case errors.Is(err, review.ErrInFlight):
		back.Set("flash", "status-busy")
	case errors.Is(err, domain.ErrInvalidStatus):
		back.Set("flash", "status-invalid")
	case errors.Is(err, review.ErrUnknownRecord):
		back.Set("flash", "status-unknown")
	default:
		back.Set("flash", "status-failed")
	}
	target := "/admin/applications"
	if enc := back.Encode(); enc != "" {
		target += "?" + enc
	}
	return c.Redirect(http.StatusSeeOther, target)
}

type detailView struct {
	App          *backend.Application
	EditingNotes bool
	NotesDraft   string
	History      []review.Event
}

// loadDetail renders the terminal error page itself when the record cannot
// be shown; ok is false in that case.
func (h *AdminHandler) loadDetail(c echo.Context) (d *review.Detail, ok bool, err error) {
	d = review.NewDetail(h.be, h.guard, h.log)
	if lerr := d.Load(c.Request().Context(), c.Param("id")); lerr != nil {
		code := http.StatusNotFound
		if d.Err == backend.MsgUnexpected {
			code = http.StatusBadGateway
		}
		return d, false, c.Render(code, "admin/error", h.view(c, "Application", errorView{
			Code: code, Message: d.Err, Back: "/admin/applications",
		}))
	}
	return d, true, nil
}

func (h *AdminHandler) renderDetail(c echo.Context, code int, d *review.Detail) error {
	v := h.view(c, d.App.StartupName, detailView{
		App:          d.App,
		EditingNotes: d.EditingNotes,
		NotesDraft:   d.NotesDraft,
		History:      d.History(h.now().UTC()),
	})
	if d.LastError != "" {
		v.Flash = d.LastError
	}
	return c.Render(code, "admin/application", v)
}

func (h *AdminHandler) Application(c echo.Context) error {
	d, ok, err := h.loadDetail(c)
	if !ok {
		return err
	}
	return h.renderDetail(c, http.StatusOK, d)
}

func (h *AdminHandler) EditNotes(c echo.Context) error {
	d, ok, err := h.loadDetail(c)
	if !ok {
		return err
	}
	d.BeginEditNotes()
	return h.renderDetail(c, http.StatusOK, d)
}

func (h *AdminHandler) Decision(c echo.Context) error {
	d, ok, err := h.loadDetail(c)
	if !ok {
		return err
	}
	if err := d.SetStatus(c.Request().Context(), c.FormValue("status")); err != nil {
		switch {
		case errors.Is(err, review.ErrInFlight):
			d.LastError = adminFlashes["status-busy"]
			return h.renderDetail(c, http.StatusConflict, d)
		case errors.Is(err, domain.ErrInvalidStatus):
			d.LastError = adminFlashes["status-invalid"]
		}
		return h.renderDetail(c, http.StatusUnprocessableEntity, d)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/applications/"+d.App.ID)
}

func (h *AdminHandler) SaveNotes(c echo.Context) error {
	d, ok, err := h.loadDetail(c)
	if !ok {
		return err
	}
	if err := d.SaveNotes(c.Request().Context(), c.FormValue("notes")); err != nil {
		if errors.Is(err, review.ErrInFlight) {
			d.EditingNotes, d.NotesDraft = true, c.FormValue("notes")
			d.LastError = adminFlashes["status-busy"]
			return h.renderDetail(c, http.StatusConflict, d)
		}
		return h.renderDetail(c, http.StatusUnprocessableEntity, d)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/applications/"+d.App.ID)
}

func (h *AdminHandler) PitchDeck(c echo.Context) error {
	if h.decks == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Pitch deck not available")
	}
	f, err := h.decks.OpenPitchDeck(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Pitch deck not found")
		}
		h.log.Error("admin: open pitch deck", zap.String("application_id", c.Param("id")), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, backend.MsgUnexpected)
	}
	return streamDeck(c, f)
}

func (h *AdminHandler) Delete(c echo.Context) error {
	return echo.NewHTTPError(http.StatusNotImplemented, msgDeleteUnavailable)
}

func (h *AdminHandler) Register(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	g := e.Group("/admin", mw...)
	g.GET("", h.Dashboard)
	g.GET("/applications", h.Applications)
	g.POST("/applications/:id/status", h.QuickStatus)
	g.GET("/applications/:id", h.Application)
	g.POST("/applications/:id/decision", h.Decision)
	g.POST("/applications/:id/notes", h.SaveNotes)
	g.GET("/applications/:id/notes/edit", h.EditNotes)
	g.GET("/applications/:id/pitch-deck", h.PitchDeck)
	g.POST("/applications/:id/delete", h.Delete)
}
