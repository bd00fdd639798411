package http

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Renderer executes one page template inside its layout. Page names are
// "<page>" for the public site and "admin/<page>" for the back office.
type Renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*Renderer)(nil)

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("Jan 2, 2006")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("Jan 2, 2006 15:04 UTC")
	},
	"pct":    func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) + "%" },
	"money":  formatMoney,
	"bytes":  formatBytes,
	"themed": themedHref,
}

func NewRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}
	sets := []struct{ layout, dir, prefix string }{
		{"layout/base.html", "pages", ""},
		{"layout/admin.html", "admin", "admin/"},
	}
	for _, s := range sets {
		files, err := fs.Glob(fsys, s.dir+"/*.html")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			t, err := template.New(path.Base(s.layout)).Funcs(funcs).ParseFS(fsys, s.layout, f)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", f, err)
			}
			r.pages[s.prefix+strings.TrimSuffix(path.Base(f), ".html")] = t
		}
	}
	if len(r.pages) == 0 {
		return nil, fmt.Errorf("no templates found")
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

func formatMoney(f float64) string {
	s := strconv.FormatFloat(f, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
