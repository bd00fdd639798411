// Package apiclient implements backend.Backend against the JSON API of a
// remote portal instance.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"accelerator-portal/internal/adapter/middleware"
	"accelerator-portal/internal/backend"
	domain "accelerator-portal/internal/domain/application"
	appuc "accelerator-portal/internal/usecase/application"

	"go.uber.org/zap"
)

var _ backend.Backend = (*Client)(nil)

type Client struct {
	base       string
	hc         *http.Client
	authHeader string
	log        *zap.Logger
}

// New; authHeader names the header the admin identity is forwarded in.
func New(baseURL string, hc *http.Client, authHeader string, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), hc: hc, authHeader: authHeader, log: log}
}

func (c *Client) CreateApplication(ctx context.Context, s backend.Submission) backend.Result[backend.Created] {
	body, contentType, err := encodeSubmission(s)
	if err != nil {
		c.log.Error("apiclient: encode submission", zap.Error(err))
		return backend.Fail[backend.Created](backend.MsgUnexpected)
	}
	var out backend.Result[backend.Created]
	do(ctx, c, http.MethodPost, "/api/applications", body, contentType, &out)
	return out
}

func (c *Client) ListApplications(ctx context.Context) backend.Result[[]backend.Application] {
	var out backend.Result[[]backend.Application]
	do(ctx, c, http.MethodGet, "/api/applications", nil, "", &out)
	return out
}

func (c *Client) GetApplicationByID(ctx context.Context, id string) backend.Result[backend.Application] {
	var out backend.Result[backend.Application]
	do(ctx, c, http.MethodGet, "/api/applications/"+url.PathEscape(id), nil, "", &out)
	return out
}

func (c *Client) UpdateApplicationStatus(ctx context.Context, id, status string) backend.Result[struct{}] {
	var out backend.Result[struct{}]
	b, _ := json.Marshal(map[string]string{"status": status})
	do(ctx, c, http.MethodPatch, "/api/applications/"+url.PathEscape(id)+"/status", bytes.NewReader(b), "application/json", &out)
	return out
}

func (c *Client) UpdateApplicationDetails(ctx context.Context, id string, p backend.DetailsPatch) backend.Result[struct{}] {
	var out backend.Result[struct{}]
	b, _ := json.Marshal(p)
	do(ctx, c, http.MethodPatch, "/api/applications/"+url.PathEscape(id), bytes.NewReader(b), "application/json", &out)
	return out
}

func (c *Client) GetApplicationAnalytics(ctx context.Context) backend.Result[backend.Analytics] {
	var out backend.Result[backend.Analytics]
	do(ctx, c, http.MethodGet, "/api/analytics", nil, "", &out)
	return out
}

// OpenPitchDeck streams the stored deck; the caller closes Body.
func (c *Client) OpenPitchDeck(ctx context.Context, applicationID string) (*appuc.PitchDeckFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/applications/"+url.PathEscape(applicationID)+"/pitch-deck", nil)
	if err != nil {
		return nil, err
	}
	c.identify(ctx, req)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: pitch deck: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("apiclient: pitch deck: status %d", resp.StatusCode)
	}
	f := &appuc.PitchDeckFile{ContentType: resp.Header.Get("Content-Type"), Size: resp.ContentLength, Body: resp.Body}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		f.Name = params["filename"]
	}
	return f, nil
}

func (c *Client) identify(ctx context.Context, req *http.Request) {
	if who, ok := middleware.IdentityFromContext(ctx); ok && c.authHeader != "" {
		req.Header.Set(c.authHeader, who)
	}
}

// do sends the request and decodes the envelope into out. Transport and
// decoding failures become the generic failure message.
func do[T any](ctx context.Context, c *Client, method, path string, body io.Reader, contentType string, out *backend.Result[T]) {
	fail := func(msg string, err error) {
		c.log.Warn("apiclient: "+msg, zap.String("method", method), zap.String("path", path), zap.Error(err))
		*out = backend.Fail[T](backend.MsgUnexpected)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		fail("build request", err)
		return
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.identify(ctx, req)

	resp, err := c.hc.Do(req)
	if err != nil {
		fail("request", err)
		return
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(out); err != nil {
		fail("decode response", fmt.Errorf("status %d: %w", resp.StatusCode, err))
		return
	}
	if resp.StatusCode >= 300 && out.Success {
		fail("inconsistent envelope", fmt.Errorf("status %d with success=true", resp.StatusCode))
		return
	}
	if !out.Success && out.Message == "" {
		out.Message = backend.MsgUnexpected
	}
}

func encodeSubmission(s backend.Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"email", s.Email},
		{"phone", s.Phone},
		{"website", s.Website},
		{"startupName", s.StartupName},
		{"teamSize", s.TeamSize},
		{"sector", s.Sector},
		{"description", s.Description},
		{"problem", s.Problem},
		{"differentiation", s.Differentiation},
		{"potentialCustomers", s.PotentialCustomers},
		{"milestones", s.Milestones},
		{"validated", strconv.FormatBool(s.Validated)},
		{"activeCustomers", strconv.Itoa(s.ActiveCustomers)},
		{"progress", strconv.Itoa(s.Progress)},
		{"fundingSecured", strconv.FormatBool(s.FundingSecured)},
		{"investmentAmount", s.InvestmentAmount},
		{"investmentType", s.InvestmentType},
		{"valuation", s.Valuation},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, opt := range s.SupportNeeded {
		if err := w.WriteField("supportNeeded", opt); err != nil {
			return nil, "", err
		}
	}

	if s.PitchDeck.Open != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pitchDeck"; filename="%s"`, escapeQuotes(s.PitchDeck.Name)))
		h.Set("Content-Type", s.PitchDeck.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		rc, err := s.PitchDeck.Open()
		if err != nil {
			return nil, "", err
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
