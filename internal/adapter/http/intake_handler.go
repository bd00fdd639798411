package http

import (
	"errors"
	"net/http"
	"time"

	"accelerator-portal/internal/backend"
	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/intake"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgSubmitInFlight = "Your application is already being submitted. Please wait."

type IntakeHandler struct {
	submitter *intake.Submitter
	pages     *PageHandler
	log       *zap.Logger
	now       func() time.Time
}

func NewIntakeHandler(s *intake.Submitter, pages *PageHandler, log *zap.Logger) *IntakeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IntakeHandler{submitter: s, pages: pages, log: log, now: time.Now}
}

type applyView struct {
	Form      intake.Form
	Errors    intake.FieldErrors
	FormError string
	Token     string

	TeamSizes       []string
	Sectors         []string
	SupportOptions  []string
	InvestmentTypes []string
}

func (h *IntakeHandler) render(c echo.Context, code int, f intake.Form, errs intake.FieldErrors, formErr string) error {
	if f.SubmissionToken == "" {
		f.SubmissionToken = uuid.NewString()
	}
	return c.Render(code, "apply", h.pages.view(c, "Apply", applyView{
		Form:            f,
		Errors:          errs,
		FormError:       formErr,
		Token:           f.SubmissionToken,
		TeamSizes:       domain.TeamSizes,
		Sectors:         domain.Sectors,
		SupportOptions:  domain.SupportOptions,
		InvestmentTypes: domain.InvestmentTypes,
	}))
}

// Form renders an empty application form.
func (h *IntakeHandler) Form(c echo.Context) error {
	return h.render(c, http.StatusOK, intake.Reset(), nil, "")
}

// Clear discards whatever was entered and starts over with a fresh token.
func (h *IntakeHandler) Clear(c echo.Context) error {
	return h.render(c, http.StatusOK, intake.Reset(), nil, "")
}

func (h *IntakeHandler) Submit(c echo.Context) error {
	f, err := readForm(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}

	out, err := h.submitter.Submit(c.Request().Context(), f)
	switch {
	case errors.Is(err, intake.ErrSubmitInFlight):
		return h.render(c, http.StatusConflict, f, nil, msgSubmitInFlight)
	case err != nil:
		h.log.Error("intake submit", zap.Error(err))
		return h.render(c, http.StatusInternalServerError, f, nil, backend.MsgUnexpected)
	case out.Redirect != "":
		return c.Redirect(http.StatusSeeOther, out.Redirect)
	case !out.Errors.Empty():
		return h.render(c, http.StatusUnprocessableEntity, f, out.Errors, "")
	default:
		return h.render(c, http.StatusUnprocessableEntity, f, nil, out.FormError)
	}
}

func (h *IntakeHandler) Confirmation(c echo.Context) error {
	conf := intake.ParseConfirmation(c.QueryParams(), h.now().UTC())
	return c.Render(http.StatusOK, "confirmation", h.pages.view(c, "Application received", conf))
}

type fieldCheck struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidateField answers the form's continuous validation for one field.
func (h *IntakeHandler) ValidateField(c echo.Context) error {
	field := c.QueryParam("field")
	if !intake.KnownField(field) {
		return c.JSON(http.StatusBadRequest, envelope{Message: "unknown field"})
	}
	f, err := readForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Message: "invalid form body"})
	}
	return c.JSON(http.StatusOK, fieldCheck{Field: field, Error: intake.ValidateField(f, field)})
}

// readForm accepts multipart and urlencoded bodies.
func readForm(c echo.Context) (intake.Form, error) {
	if mf, err := c.MultipartForm(); err == nil {
		return intake.ParseMultipart(mf), nil
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return intake.Form{}, err
	}
	vals, err := c.FormParams()
	if err != nil {
		return intake.Form{}, err
	}
	return intake.ParseValues(vals), nil
}

// Register mounts the intake routes; submitMW guards the submit, checkMW the
// other form posts.
func (h *IntakeHandler) Register(e *echo.Echo, submitMW, checkMW []echo.MiddlewareFunc) {
	e.GET("/apply", h.Form)
	e.POST("/apply", h.Submit, submitMW...)
	e.POST("/apply/clear", h.Clear, checkMW...)
	e.GET("/apply/confirmation", h.Confirmation)
	e.POST("/api/apply/validate", h.ValidateField, checkMW...)
}
