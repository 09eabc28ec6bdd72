package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vibe-check/internal/blocks"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"clock12":  blocks.Clock12,
	"schedule": blocks.ScheduleLabel,
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "—"
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"rating": func(r int) string {
		if r < 1 {
			return "—"
		}
		return fmt.Sprintf("%d/5", r)
	},
	"avg": func(f float64) string {
		if f == 0 {
			return "—"
		}
		return fmt.Sprintf("%.1f", f)
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"add": func(a, b int) int { return a + b },
}

// Templates parses the embedded dashboard and install pages. Pages are
// addressed by file name ("dashboard.html").
func Templates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is Templates for router setup; it panics on a parse error.
func MustTemplates() *template.Template {
	t, err := Templates()
	if err != nil {
		panic(err)
	}
	return t
}

// messagePage renders a one-message HTML page.
func messagePage(c *gin.Context, status int, title, message string) {
	c.HTML(status, "message.html", gin.H{"Title": title, "Message": message, "OK": status < 400})
}
