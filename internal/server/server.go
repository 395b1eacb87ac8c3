// Package server serves the tokohwatch dashboard and its JSON API.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
	"github.com/TobiSchelling/tokohwatch/internal/report"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const (
	dashboardRecords = 20
	requestTimeout   = 120 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// Heartbeat is the idle interval of the progress stream.
	Heartbeat time.Duration
}

// Server is the HTTP server for the dashboard and API.
type Server struct {
	db        *database.DB
	pipe      *pipeline.Pipeline
	pages     map[string]*template.Template
	router    chi.Router
	heartbeat time.Duration
	now       func() time.Time
}

// New creates a new Server.
func New(db *database.DB, pipe *pipeline.Pipeline, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"join":     strings.Join,
		"lower":    strings.ToLower,
		"urgency":  func(c risk.Category) risk.Urgency { return risk.UrgencyFor(c) },
		"excerpt":  func(s string) string { return excerpt(s, 160) },
		"category": func(c risk.Category) string { return strings.ToLower(string(c)) },
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "people.html", "tasks.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}

	s := &Server{
		db:        db,
		pipe:      pipe,
		pages:     pages,
		heartbeat: opts.Heartbeat,
		now:       time.Now,
	}
	s.routes(opts)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(opts Options) {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// The progress stream is long-lived and must not be cut by the
	// request timeout.
	r.Get("/api/progress/stream", s.handleProgressStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/", s.handleIndex)
		r.Get("/people", s.handlePeople)
		r.Get("/tasks", s.handleTasks)
		r.Get("/report", s.handleReport)

		r.Route("/api", func(r chi.Router) {
			r.Get("/records", s.handleRecords)
			r.Get("/stats", s.handleStats)
			r.Get("/export", s.handleExport)
			r.Get("/search", s.handleSearch)
			r.Get("/progress", s.handleProgress)

			r.Route("/people", func(r chi.Router) {
				r.Get("/", s.handleListPeople)
				r.Post("/{id}/field", s.handleUpdatePersonField)
			})

			r.Route("/analyze", func(r chi.Router) {
				r.Post("/", s.handleAnalyze)
				r.Post("/all", s.handleAnalyzeAll)
				r.Post("/document", s.handleAnalyzeDocument)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.handleListTasks)
				r.Post("/", s.handleCreateTask)
				r.Get("/{id}", s.handleGetTask)
				r.Post("/{id}/{action}", s.handleTaskAction)
			})
		})
	})

	s.router = r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("kategori")
	filter := database.RecordFilter{Limit: dashboardRecords}
	if c, ok := risk.ParseCategory(category); ok {
		filter.Category = c
	}

	stats, err := s.db.Stats()
	if err != nil {
		log.Printf("Error loading stats: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	records, err := s.db.ListRecords(filter)
	if err != nil {
		log.Printf("Error listing records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	people, _ := s.db.CountPeople()

	s.render(w, "index.html", map[string]any{
		"Stats":       stats,
		"Records":     records,
		"Categories":  risk.Categories,
		"Selected":    filter.Category,
		"PeopleCount": people,
		"Now":         s.now().Format("02 January 2006 15:04"),
	})
}

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.db.ListPeople()
	if err != nil {
		log.Printf("Error listing people: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "people.html", map[string]any{"People": people})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.db.ListTasks()
	if err != nil {
		log.Printf("Error listing tasks: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	people, _ := s.db.ListPeople()
	s.render(w, "tasks.html", map[string]any{"Tasks": tasks, "People": people})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListRecords(database.RecordFilter{})
	if err != nil {
		log.Printf("Error listing records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	digest := report.Compose(records, s.now())
	s.render(w, "report.html", map[string]any{"Digest": digest, "Markdown": digest.Markdown()})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
