package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type NavLink struct {
	Href   string
	Label  string
	Active bool
}

// View is what every layout renders. Data is the page's own model.
type View struct {
	Title string
	Theme string
	Nav   []NavLink
	Flash string
	Admin string
	Data  any
}

var publicNav = []NavLink{
	{Href: "/", Label: "Home"},
	{Href: "/about", Label: "About"},
	{Href: "/programs", Label: "Programs"},
	{Href: "/news", Label: "News"},
	{Href: "/contact", Label: "Contact"},
	{Href: "/help", Label: "Help"},
	{Href: "/apply", Label: "Apply"},
}

// navFor marks the link owning current. "/" only matches itself; other links
// also own their sub-paths.
func navFor(links []NavLink, current, theme string) []NavLink {
	out := make([]NavLink, len(links))
	for i, l := range links {
		l.Active = current == l.Href ||
			(l.Href != "/" && l.Href != "/admin" && strings.HasPrefix(current, l.Href+"/"))
		l.Href = themedHref(l.Href, theme)
		out[i] = l
	}
	return out
}

// themedHref keeps a non-default theme across public links.
func themedHref(href, theme string) string {
	if theme != ThemeDark {
		return href
	}
	return href + "?theme=" + url.QueryEscape(theme)
}

type Program struct {
	Name     string
	Duration string
	Summary  string
}

type NewsItem struct {
	Title     string
	Published time.Time
	Summary   string
}

type FAQ struct{ Q, A string }

var programs = []Program{
	{"Pre-seed Launch", "12 weeks", "From idea to first paying customers with weekly mentor sessions."},
	{"Growth Track", "6 months", "For teams with traction: go-to-market, hiring and fundraising support."},
	{"Agri Innovation Lab", "4 months", "Sector program for agriculture and food-supply startups."},
}

var news = []NewsItem{
	{"Applications open for the spring cohort", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), "Founders can now apply through the online form."},
	{"Demo day recap", time.Date(2024, 12, 12, 0, 0, 0, 0, time.UTC), "Twelve startups pitched to more than eighty investors."},
}

var faqs = []FAQ{
	{"Who can apply?", "Any early-stage startup with at least one full-time founder."},
	{"What should my pitch deck include?", "Problem, solution, market, traction, team and ask. PDF, PPT or PPTX up to 10MB."},
	{"How long does review take?", "Most applications receive a decision within three weeks."},
	{"Can I edit my application?", "Not after submission. Contact us if something important changed."},
}

type PageHandler struct {
	defaultTheme string
}

func NewPageHandler(defaultTheme string) *PageHandler {
	if defaultTheme != ThemeDark {
		defaultTheme = ThemeLight
	}
	return &PageHandler{defaultTheme: defaultTheme}
}

// Theme resolves ?theme=, falling back to the site default.
func (h *PageHandler) Theme(c echo.Context) string {
	switch strings.ToLower(c.QueryParam("theme")) {
	case ThemeDark:
		return ThemeDark
	case ThemeLight:
		return ThemeLight
	}
	return h.defaultTheme
}

func (h *PageHandler) view(c echo.Context, title string, data any) View {
	theme := h.Theme(c)
	return View{
		Title: title,
		Theme: theme,
		Nav:   navFor(publicNav, c.Request().URL.Path, theme),
		Data:  data,
	}
}

// Page serves one static public page.
func (h *PageHandler) Page(name, title string, data any) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, name, h.view(c, title, data))
	}
}

func (h *PageHandler) Register(e *echo.Echo) {
	e.GET("/", h.Page("home", "Home", nil))
	e.GET("/about", h.Page("about", "About", nil))
	e.GET("/programs", h.Page("programs", "Programs", programs))
	e.GET("/news", h.Page("news", "News", news))
	e.GET("/contact", h.Page("contact", "Contact", nil))
	e.GET("/help", h.Page("help", "Help", faqs))
}

type errorView struct {
	Code    int
	Message string
	Back    string
}

// ErrorHandler renders HTML errors for pages and the envelope for /api.
func (h *PageHandler) ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		p := c.Request().URL.Path
		var rerr error
		switch {
		case strings.HasPrefix(p, "/api/"):
			rerr = c.JSON(code, envelope{Message: msg})
		case strings.HasPrefix(p, "/admin"):
			rerr = c.Render(code, "admin/error", View{Title: "Error", Data: errorView{Code: code, Message: msg, Back: "/admin/applications"}})
		case c.Request().Method == http.MethodHead:
			rerr = c.NoContent(code)
		default:
			rerr = c.Render(code, "error", h.view(c, "Error", errorView{Code: code, Message: msg}))
		}
		if rerr != nil {
			log.Error("render error response", zap.Int("code", code), zap.Error(rerr))
		}
	}
}
