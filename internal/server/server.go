package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/charts"
	"github.com/testrunner/dashboard/internal/dashboard"
	"github.com/testrunner/dashboard/internal/history"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type Server struct {
	dash      *dashboard.Dashboard
	api       app.Backend
	history   history.Store
	charts    *charts.Generator
	templates map[string]*template.Template
	rootDir   string
}

func NewServer(dash *dashboard.Dashboard, api app.Backend, store history.Store, rootDir string) *Server {
	templatesDir := filepath.Join(rootDir, "web/templates")
	templates := make(map[string]*template.Template)

	// each page defines "content" and is parsed together with the layout
	pages := []string{
		"dashboard.html",
	}

	layoutPath := filepath.Join(templatesDir, "layout.html")
	for _, page := range pages {
		pagePath := filepath.Join(templatesDir, page)
		t := template.Must(template.New(page).Funcs(templateFuncs()).ParseFiles(layoutPath, pagePath))
		templates[page] = t
	}

	if store == nil {
		store = history.NewMemoryStore()
	}

	return &Server{
		dash:      dash,
		api:       api,
		history:   store,
		charts:    charts.NewGenerator(),
		templates: templates,
		rootDir:   rootDir,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	})
	r.Use(c.Handler)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(s.rootDir, "web/static")))))

	// Page and form actions
	r.Get("/", s.handleDashboard)
	r.Post("/actions/run", s.handleRunAction)
	r.Post("/actions/refresh", s.handleRefreshAction)
	r.Post("/actions/clear", s.handleClearAction)

	// API routes
	r.Get("/api/v1/state", s.handleStateAPI)
	r.Get("/api/v1/results", s.handleResultsAPI)
	r.Delete("/api/v1/results", s.handleClearResultsAPI)
	r.Get("/api/v1/tests", s.handleTestsAPI)
	r.Get("/api/v1/tests/{name}/results", s.handleTestResultsAPI)
	r.Get("/api/v1/runs", s.handleRunHistoryAPI)
	r.Post("/api/v1/runs", s.handleStartRunAPI)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.dash.Snapshot()

	runs, err := s.history.RecentRuns(r.Context(), defaultHistoryLimit)
	if err != nil {
		log.Printf("server.dashboard: failed to load run history error=%v", err)
	}

	var results []app.TestResult
	passRate := 0
	if snap.Results != nil {
		results = snap.Results.Results
		passRate = snap.Results.PassRate()
	}

	data := map[string]interface{}{
		"State":         snap,
		"Results":       results,
		"PassRate":      passRate,
		"Runs":          runs,
		"PassRateChart": template.HTML(s.charts.PassRateChart(runs)),
		"StatusChart":   template.HTML(s.charts.StatusChart(runs)),
		"Sparkline":     template.HTML(s.charts.Sparkline(charts.PassRates(runs))),
	}

	s.render(w, "dashboard.html", data)
}

func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.RunTestsAsync(); err != nil {
		log.Printf("server.run_action: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Failures of the form actions are recorded in the dashboard state and shown
// on the page, so the action handlers only log them.
func (s *Server) handleRefreshAction(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.LoadResults(detached(r)); err != nil {
		log.Printf("server.refresh_action: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClearAction(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.ClearResults(detached(r)); err != nil {
		log.Printf("server.clear_action: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleStateAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

func (s *Server) handleResultsAPI(w http.ResponseWriter, r *http.Request) {
	resp, err := s.api.Results(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearResultsAPI(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.ClearResults(detached(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestsAPI(w http.ResponseWriter, r *http.Request) {
	tests, err := s.api.ListTests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tests": tests})
}

func (s *Server) handleTestResultsAPI(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	results, err := s.api.ResultsByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []app.TestResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleRunHistoryAPI(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, &app.APIError{Message: "Invalid limit", Status: http.StatusBadRequest})
			return
		}
		limit = n
	}

	runs, err := s.history.RecentRuns(r.Context(), limit)
	if err != nil {
		log.Printf("server.run_history: failed error=%v", err)
		writeError(w, app.NewAPIError("Failed to load run history", err))
		return
	}
	if runs == nil {
		runs = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleStartRunAPI(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.RunTestsAsync(); err != nil {
		if errors.Is(err, dashboard.ErrBusy) {
			writeJSON(w, http.StatusConflict, &app.APIError{Message: "Test run already in progress", Status: http.StatusConflict})
			return
		}
		writeError(w, err)
		return
	}
	log.Println("server.start_run: batch run started")
	writeJSON(w, http.StatusAccepted, s.dash.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"backend": s.api.Health(r.Context()),
	})
}

func (s *Server) render(w http.ResponseWriter, page string, data interface{}) {
	t, ok := s.templates[page]
	if !ok {
		log.Printf("Template not found: %s", page)
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// detached returns a context for state-changing dashboard calls that must
// finish even if the client disconnects. Backend calls carry their own
// timeouts.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server.write_json: encode failed error=%v", err)
	}
}

// writeError responds with the APIError shape. Errors that are not API
// errors are reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := app.AsAPIError(err)
	if !ok {
		apiErr = app.NewAPIError(err.Error(), err)
	}
	status := apiErr.Status
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, apiErr)
}
