package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"expense-web/internal/expense"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/app.css
var appCSS []byte

//go:embed static/app.js
var appJS []byte

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"money": func(a expense.Amount) string {
		return expense.FormatAmount(strconv.FormatFloat(float64(a), 'f', -1, 64))
	},
	"prettyDate": func(s string) string {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return "N/A"
		}
		return t.Format("Jan 2, 2006")
	},
}).ParseFS(templatesFS, "templates/*.html"))

// dashboardData is the dashboard template's view model.
type dashboardData struct {
	Expenses   []expense.ExpenseView
	Categories []expense.Category
	Draft      *expense.Draft
	DraftToken string
	EditID     int
	FormError  string
	PageError  string
}

// loginData is the login template's view model.
type loginData struct {
	Error string
}

func (s *Server) render(w http.ResponseWriter, name string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("Error rendering template", "template", name, "error", err)
	}
}

func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(appCSS)
}

func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
