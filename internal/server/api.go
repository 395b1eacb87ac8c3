package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TobiSchelling/tokohwatch/internal/collect"
	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
	"github.com/TobiSchelling/tokohwatch/internal/progress"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

const taskRecentRecords = 20

// taskActions maps control actions onto target statuses.
var taskActions = map[string]database.TaskStatus{
	"pause":  database.TaskPaused,
	"resume": database.TaskActive,
	"stop":   database.TaskCompleted,
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.RecordFilter{Person: strings.TrimSpace(q.Get("person"))}
	if c := q.Get("category"); c != "" {
		cat, ok := risk.ParseCategory(c)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid category: "+c)
			return
		}
		filter.Category = cat
	}
	if t := q.Get("task"); t != "" {
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid task id: "+t)
			return
		}
		filter.TaskID = &id
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.ParseUint(l, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit: "+l)
			return
		}
		filter.Limit = n
	}

	records, err := s.db.ListRecords(filter)
	if err != nil {
		log.Printf("Error listing records: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve records")
		return
	}
	if records == nil {
		records = []database.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		log.Printf("Error loading stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("results_export_%s.json", s.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := s.db.ExportJSON(w); err != nil {
		log.Printf("Error exporting records: %v", err)
	}
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.db.ListPeople()
	if err != nil {
		log.Printf("Error listing people: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve people")
		return
	}
	if people == nil {
		people = []database.Person{}
	}
	writeJSON(w, http.StatusOK, people)
}

func (s *Server) handleUpdatePersonField(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid person id")
		return
	}
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err = s.db.UpdatePersonField(id, req.Field, req.Value)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrFieldNotEditable), errors.Is(err, database.ErrEmptyName):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "Person not found")
		return
	default:
		log.Printf("Error updating person %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update person")
		return
	}

	person, err := s.db.GetPerson(id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "person": person})
}

type analyzeRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	PersonID    int64  `json:"person_id"`
	SearchQuery string `json:"search_query"`
}

func (req analyzeRequest) article() pipeline.Article {
	return pipeline.Article{URL: req.URL, Title: req.Title, Source: req.Source, Keyword: req.SearchQuery}
}

func decodeAnalyze(w http.ResponseWriter, r *http.Request) (*analyzeRequest, bool) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return nil, false
	}
	return &req, true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyze(w, r)
	if !ok {
		return
	}
	if req.PersonID == 0 {
		writeError(w, http.StatusBadRequest, "Person ID is required")
		return
	}

	an, err := s.pipe.AnalyzeOne(r.Context(), req.article(), req.PersonID)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrPersonNotFound):
		writeError(w, http.StatusNotFound, "Person not found")
		return
	case errors.Is(err, pipeline.ErrPersonNotMentioned):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		log.Printf("Error analyzing %s: %v", req.URL, err)
		writeError(w, http.StatusInternalServerError, "Failed to analyze article: "+err.Error())
		return
	}

	resp := map[string]any{"success": true, "analysis": an.Record, "method": an.Method}
	if an.RecordID != 0 {
		resp["result_id"] = an.RecordID
	}
	if an.Warning != "" {
		resp["warning"] = an.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyzeAll(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyze(w, r)
	if !ok {
		return
	}

	result, err := s.pipe.AnalyzeAll(r.Context(), req.article())
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrNoPeople):
		writeError(w, http.StatusBadRequest, "No people found in the database")
		return
	default:
		log.Printf("Error analyzing %s for all people: %v", req.URL, err)
		writeError(w, http.StatusInternalServerError, "Failed to analyze article: "+err.Error())
		return
	}
	if result.Analyses == nil {
		result.Analyses = []pipeline.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"results":        result.Analyses,
		"analyzed_count": len(result.Analyses),
		"skipped":        result.Skipped,
		"errors":         result.Errors,
	})
}

// handleAnalyzeDocument starts a bulk analysis in the background and
// returns immediately; clients follow it through /api/progress.
func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string   `json:"text"`
		Paragraphs []string `json:"paragraphs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	paragraphs := req.Paragraphs
	if len(paragraphs) == 0 {
		paragraphs = pipeline.SplitParagraphs(req.Text)
	}
	if len(paragraphs) == 0 {
		writeError(w, http.StatusBadRequest, "No paragraphs to analyze")
		return
	}
	if s.pipe.Progress().State().Status == progress.StatusProcessing {
		writeError(w, http.StatusConflict, "An analysis is already running")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := s.pipe.AnalyzeDocument(ctx, paragraphs); err != nil {
			log.Printf("Document analysis failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "paragraphs": len(paragraphs)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeToday, _ := strconv.ParseBool(q.Get("include_today"))
	query := collect.Query{
		Keyword:      q.Get("q"),
		From:         q.Get("from"),
		To:           q.Get("to"),
		IncludeToday: includeToday,
	}
	if strings.TrimSpace(query.Keyword) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	articles, err := s.pipe.Search(r.Context(), query)
	if err != nil {
		log.Printf("Error searching news: %v", err)
		writeError(w, http.StatusBadGateway, "News search failed: "+err.Error())
		return
	}
	if articles == nil {
		articles = []collect.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.db.ListTasks()
	if err != nil {
		log.Printf("Error listing tasks: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve tasks")
		return
	}
	if tasks == nil {
		tasks = []database.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleCreateTask stores the task and runs its first pass right away so
// the caller sees early results; the scheduler handles the rest.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query        string  `json:"query"`
		FromDate     string  `json:"from_date"`
		ToDate       string  `json:"to_date"`
		IncludeToday bool    `json:"include_today"`
		PersonIDs    []int64 `json:"person_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	task := database.Task{
		Query:        req.Query,
		FromDate:     req.FromDate,
		IncludeToday: req.IncludeToday,
		PersonIDs:    req.PersonIDs,
	}
	if req.ToDate != "" {
		task.ToDate = &req.ToDate
	}
	id, err := s.db.CreateTask(task)
	if err != nil {
		log.Printf("Error creating task: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	resp := map[string]any{"success": true, "task_id": id}
	run, err := s.pipe.RunTask(r.Context(), id, s.pipe.ImmediateArticles())
	if err != nil {
		resp["run_error"] = err.Error()
	}
	if run != nil {
		resp["run"] = run
	}
	if t, err := s.db.GetTask(id); err == nil {
		resp["task"] = t
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task id")
		return
	}
	task, err := s.db.GetTask(id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		log.Printf("Error loading task %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load task")
		return
	}

	records, err := s.db.ListRecords(database.RecordFilter{TaskID: &id, Limit: taskRecentRecords})
	if err != nil {
		log.Printf("Error listing records for task %d: %v", id, err)
	}
	if records == nil {
		records = []database.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task, "records": records})
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task id")
		return
	}
	action := chi.URLParam(r, "action")

	if action == "run" {
		run, err := s.pipe.RunTask(r.Context(), id, s.pipe.ImmediateArticles())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, run)
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, pipeline.ErrTaskNotActive):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, pipeline.ErrNoPeople):
			writeError(w, http.StatusBadRequest, "No people found in the database")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	to, ok := taskActions[action]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown action: "+action)
		return
	}
	task, err := s.db.SetTaskStatus(id, to)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("Error updating task %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update task")
	}
}
