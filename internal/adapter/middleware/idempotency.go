package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// How long the "in-progress" marker lives if the handler never finishes.
	provisionalLockTTL = 60 * time.Second

	HeaderIdempotencyKey = "Idempotency-Key"
	FieldSubmissionToken = "submissionToken"
)

// ---- Data types ----
type submitEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type,omitempty"`
	Location    string    `json:"location,omitempty"`
	BodySHA256  string    `json:"body_sha256,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	if r.buf != nil {
		r.buf.Write(b)
	}
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// SubmitGuard collapses repeated submissions carrying the same token into one.
// The token comes from the Idempotency-Key header or, for browser forms, the
// submissionToken field. Requests without a token pass through.
//
// The first request runs; concurrent duplicates get 409; later duplicates get
// the first response replayed. Responses >= 400 are not kept, so a corrected
// form can be resubmitted with the same token.
func SubmitGuard(rdb *redis.Client, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			method := req.Method

			// Only enforce on mutating methods
			switch method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			token := strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey))
			fromHeader := token != ""
			if !fromHeader {
				token = strings.TrimSpace(c.FormValue(FieldSubmissionToken))
			}
			if token == "" {
				return next(c)
			}
			if !validToken(token) {
				return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "message": "invalid submission token"})
			}

			// Header-keyed JSON calls must reuse the same body; browser
			// multipart posts are identified by the token alone.
			var bhash string
			if fromHeader && !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				var body []byte
				if req.Body != nil {
					body, _ = io.ReadAll(req.Body)
				}
				req.Body = io.NopCloser(bytes.NewBuffer(body))
				bhash = bodyHash(body)
			}

			key := buildKey(method, c.Path(), strings.ToLower(token))
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			ok, err := provisionalSet(ctx, rdb, key, submitEntry{InProgress: true, BodySHA256: bhash, CreatedAt: nowUTC()})
			if err != nil {
				log.Error("submit guard: store unavailable", zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]any{"success": false, "message": "submission store unavailable"})
			}
			if !ok {
				cur, errLoad := loadEntry(ctx, rdb, key)
				if errLoad != nil {
					log.Warn("submit guard: load entry", zap.String("key", key), zap.Error(errLoad))
				}
				if cur.BodySHA256 != "" && bhash != "" && cur.BodySHA256 != bhash {
					return c.JSON(http.StatusConflict, map[string]any{"success": false, "message": "submission token reused with a different body"})
				}
				if !cur.InProgress && cur.Code != 0 {
					return replay(c, cur)
				}
				return c.JSON(http.StatusConflict, map[string]any{"success": false, "message": "this submission is already in progress"})
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			if rec.code >= http.StatusBadRequest {
				if err := release(context.Background(), rdb, key); err != nil {
					log.Warn("submit guard: release", zap.String("key", key), zap.Error(err))
				}
				return nil
			}
			final := submitEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				ContentType: rec.Header().Get(echo.HeaderContentType),
				Location:    rec.Header().Get(echo.HeaderLocation),
				BodySHA256:  bhash,
				CreatedAt:   nowUTC(),
			}
			if err := saveFinal(context.Background(), rdb, key, final, ttl); err != nil {
				log.Warn("submit guard: save", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

func replay(c echo.Context, e submitEntry) error {
	h := c.Response().Header()
	if e.Location != "" {
		h.Set(echo.HeaderLocation, e.Location)
	}
	h.Set("Idempotent-Replayed", "true")
	if e.ContentType == "" {
		return c.NoContent(e.Code)
	}
	return c.Blob(e.Code, e.ContentType, e.Body)
}
