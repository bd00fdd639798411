package http

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"accelerator-portal/internal/backend"
	"accelerator-portal/internal/intake"
	"accelerator-portal/internal/usecase/analytics"
	appuc "accelerator-portal/internal/usecase/application"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

//go:embed schema/details_patch.json
var detailsPatchSchema []byte

const maxPatchBody = 64 << 10

// APIHandler serves the JSON backend contract over the usecases.
type APIHandler struct {
	apps      *appuc.Usecase
	analytics *analytics.Usecase
	patch     *gojsonschema.Schema
	log       *zap.Logger
}

func NewAPIHandler(apps *appuc.Usecase, an *analytics.Usecase, log *zap.Logger) (*APIHandler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(detailsPatchSchema))
	if err != nil {
		return nil, fmt.Errorf("details patch schema: %w", err)
	}
	return &APIHandler{apps: apps, analytics: an, patch: s, log: log}, nil
}

type idParam struct {
	ID string `param:"id" validate:"hex32"`
}

type statusReq struct {
	ID     string `param:"id" json:"-" validate:"hex32"`
	Status string `json:"status" validate:"required,appstatus"`
}

// fail maps err to a status code and the public message.
func (h *APIHandler) fail(c echo.Context, op string, err error) error {
	code := statusFor(err)
	msg, ok := backend.Message(err)
	if !ok {
		h.log.Error("api: "+op, zap.Error(err))
		msg = backend.MsgUnexpected
	}
	return respondFail(c, code, msg, nil)
}

func (h *APIHandler) Create(c echo.Context) error {
	f, err := readForm(c)
	if err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid form body", nil)
	}
	if errs := intake.Validate(f); !errs.Empty() {
		return respondFail(c, http.StatusUnprocessableEntity, "validation failed", formDetails(errs))
	}
	out, err := h.apps.Create(c.Request().Context(), f.Input())
	if err != nil {
		return h.fail(c, "create application", err)
	}
	h.analytics.Invalidate(c.Request().Context())
	return respondOK(c, http.StatusCreated, out)
}

func (h *APIHandler) List(c echo.Context) error {
	out, err := h.apps.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "list applications", err)
	}
	return respondOK(c, http.StatusOK, out)
}

func (h *APIHandler) Get(c echo.Context) error {
	var p idParam
	if err := c.Bind(&p); err != nil || c.Validate(&p) != nil {
		return respondFail(c, http.StatusNotFound, "Application not found", nil)
	}
	out, err := h.apps.Get(c.Request().Context(), p.ID)
	if err != nil {
		return h.fail(c, "get application", err)
	}
	return respondOK(c, http.StatusOK, out)
}

func (h *APIHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid body", nil)
	}
	if err := c.Validate(&req); err != nil {
		fe := ToFieldErrors(err)
		if containsField(fe, "id") {
			return respondFail(c, http.StatusNotFound, "Application not found", nil)
		}
		return respondFail(c, http.StatusUnprocessableEntity, "validation failed", fe)
	}
	out, err := h.apps.UpdateStatus(c.Request().Context(), req.ID, req.Status)
	if err != nil {
		return h.fail(c, "update status", err)
	}
	h.analytics.Invalidate(c.Request().Context())
	return respondOK(c, http.StatusOK, out)
}

// UpdateDetails applies a {status?, notes?} patch checked against the
// embedded JSON schema.
func (h *APIHandler) UpdateDetails(c echo.Context) error {
	// path only: the body is read raw for schema validation
	var p idParam
	if err := (&echo.DefaultBinder{}).BindPathParams(c, &p); err != nil || c.Validate(&p) != nil {
		return respondFail(c, http.StatusNotFound, "Application not found", nil)
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPatchBody))
	if err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid body", nil)
	}
	res, err := h.patch.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid body", nil)
	}
	if !res.Valid() {
		details := make([]FieldError, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, FieldError{Field: e.Field(), Message: e.Description()})
		}
		return respondFail(c, http.StatusUnprocessableEntity, "validation failed", details)
	}
	var patch appuc.DetailsPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		return respondFail(c, http.StatusBadRequest, "invalid body", nil)
	}
	out, err := h.apps.UpdateDetails(c.Request().Context(), p.ID, patch)
	if err != nil {
		return h.fail(c, "update details", err)
	}
	h.analytics.Invalidate(c.Request().Context())
	return respondOK(c, http.StatusOK, out)
}

func (h *APIHandler) Analytics(c echo.Context) error {
	out, err := h.analytics.Snapshot(c.Request().Context())
	if err != nil {
		return h.fail(c, "analytics", err)
	}
	return respondOK(c, http.StatusOK, out)
}

func (h *APIHandler) PitchDeck(c echo.Context) error {
	var p idParam
	if err := c.Bind(&p); err != nil || c.Validate(&p) != nil {
		return respondFail(c, http.StatusNotFound, "Application not found", nil)
	}
	f, err := h.apps.OpenPitchDeck(c.Request().Context(), p.ID)
	if err != nil {
		return h.fail(c, "open pitch deck", err)
	}
	return streamDeck(c, f)
}

func streamDeck(c echo.Context, f *appuc.PitchDeckFile) error {
	defer f.Body.Close()
	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Name))
	if f.Size > 0 {
		hdr.Set(echo.HeaderContentLength, strconv.FormatInt(f.Size, 10))
	}
	ct := f.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, ct, f.Body)
}

func containsField(list []FieldError, field string) bool {
	for _, e := range list {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Register mounts the API; admin guards everything except intake creation.
func (h *APIHandler) Register(e *echo.Echo, create []echo.MiddlewareFunc, admin ...echo.MiddlewareFunc) {
	e.POST("/api/applications", h.Create, create...)
	g := e.Group("/api", admin...)
	g.GET("/applications", h.List)
	g.GET("/applications/:id", h.Get)
	g.GET("/applications/:id/pitch-deck", h.PitchDeck)
	g.PATCH("/applications/:id/status", h.UpdateStatus)
	g.PATCH("/applications/:id", h.UpdateDetails)
	g.GET("/analytics", h.Analytics)
}
