package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"accelerator-portal/internal/adapter/middleware"
)

// bodyLimit leaves room for a 10MB deck plus the text fields.
const bodyLimit = "12M"

type Deps struct {
	Log      *zap.Logger
	Renderer echo.Renderer

	Pages  *PageHandler
	Intake *IntakeHandler
	Admin  *AdminHandler
	// API is nil when this instance fronts a remote backend.
	API *APIHandler

	// Optional middlewares; nil entries are skipped.
	SubmitGuard   echo.MiddlewareFunc
	RateLimit     echo.MiddlewareFunc
	ValidateLimit echo.MiddlewareFunc // per-field validation endpoint
	AdminAuth     echo.MiddlewareFunc

	// IPExtractor decides what c.RealIP returns; nil means the peer address.
	IPExtractor echo.IPExtractor

	Metrics http.Handler
	// Checks feed /health, keyed by dependency name.
	Checks map[string]Check
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := mws[:0]
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func NewRouter(d Deps) *echo.Echo {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = d.IPExtractor
	if e.IPExtractor == nil {
		e.IPExtractor = middleware.ClientIP(nil)
	}
	e.Validator = NewValidator()
	e.Renderer = d.Renderer
	e.HTTPErrorHandler = d.Pages.ErrorHandler(log)
	e.Use(echomw.Recover(), middleware.RequestLogger(log))

	// routes
	e.GET("/health", NewHandler(d.Checks).Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	d.Pages.Register(e)

	limit := echomw.BodyLimit(bodyLimit)
	submit := compact(limit, d.RateLimit, d.SubmitGuard)
	check := compact(limit, d.ValidateLimit)
	d.Intake.Register(e, submit, check)

	admin := compact(d.AdminAuth)
	if d.API != nil {
		d.API.Register(e, submit, admin...)
	}
	d.Admin.Register(e, admin...)
	return e
}
