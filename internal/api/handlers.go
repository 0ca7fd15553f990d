package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/moviedeck/cine-scraper/internal/database"
	"github.com/moviedeck/cine-scraper/internal/jobs"
	"github.com/moviedeck/cine-scraper/internal/keywords"
	"github.com/moviedeck/cine-scraper/internal/scraper"
)

type Handlers struct {
	scraper  *scraper.Service
	jobs     *jobs.Manager
	runner   *jobs.Runner
	db       *database.DB
	keywords *keywords.Table
	logger   *slog.Logger
}

func NewHandlers(svc *scraper.Service, jobManager *jobs.Manager, runner *jobs.Runner, db *database.DB, kw *keywords.Table, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  svc,
		jobs:     jobManager,
		runner:   runner,
		db:       db,
		keywords: kw,
		logger:   logger,
	}
}

// ScrapeMovieRequest asks for one movie by title or by site id.
type ScrapeMovieRequest struct {
	Title   string `json:"title"`
	MovieID string `json:"movie_id"`
}

// ScrapeMovieResponse carries the scraped record back to the caller.
type ScrapeMovieResponse struct {
	Movie         interface{} `json:"movie,omitempty"`
	AlreadyExists bool        `json:"already_exists"`
	Message       string      `json:"message,omitempty"`
}

// ScrapeMovie runs a synchronous single-movie scrape by title. The request
// waits for the scrape slot, so a long batch job delays it rather than
// failing it.
func (h *Handlers) ScrapeMovie(w http.ResponseWriter, r *http.Request) {
	var req ScrapeMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		h.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	query := h.keywords.Expand(req.Title)

	var result *scraper.ScrapeResult
	err := h.runner.Do(r.Context(), func() error {
		var scrapeErr error
		result, scrapeErr = h.scraper.ScrapeByTitle(r.Context(), query)
		return scrapeErr
	})
	h.respondScrapeResult(w, result, err, query)
}

// ScrapeMovieByID runs a synchronous single-movie scrape by site id.
func (h *Handlers) ScrapeMovieByID(w http.ResponseWriter, r *http.Request) {
	var req ScrapeMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MovieID == "" {
		h.respondError(w, http.StatusBadRequest, "movie_id is required")
		return
	}

	var result *scraper.ScrapeResult
	err := h.runner.Do(r.Context(), func() error {
		var scrapeErr error
		result, scrapeErr = h.scraper.ScrapeByID(r.Context(), req.MovieID)
		return scrapeErr
	})
	h.respondScrapeResult(w, result, err, req.MovieID)
}

func (h *Handlers) respondScrapeResult(w http.ResponseWriter, result *scraper.ScrapeResult, err error, query string) {
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "no movie found for "+query)
			return
		}
		h.logger.Error("scrape failed", "query", query, "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "movie scraped and stored"
	if result.AlreadyExists {
		message = "movie already stored, existing record kept"
	}
	h.respondJSON(w, http.StatusOK, ScrapeMovieResponse{
		Movie:         result.Movie,
		AlreadyExists: result.AlreadyExists,
		Message:       message,
	})
}

// SearchRequest asks for candidate matches without scraping details.
type SearchRequest struct {
	Query string `json:"query"`
}

// Search returns list-page candidates for a query, keyword-expanded.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		h.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	query := h.keywords.Expand(req.Query)

	var stubs interface{}
	err := h.runner.Do(r.Context(), func() error {
		candidates, searchErr := h.scraper.SearchCandidates(r.Context(), query)
		stubs = candidates
		return searchErr
	})
	if err != nil {
		h.logger.Error("search failed", "query", query, "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":      query,
		"candidates": stubs,
	})
}

// CreateJobRequest queues a background scrape.
type CreateJobRequest struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
	Pages int    `json:"pages"`
}

// CreateJobResponse acknowledges a queued job.
type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob queues a job for the background worker.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = jobs.KindFullCrawl
	}
	if req.Kind == jobs.KindTitle {
		req.Query = h.keywords.Expand(req.Query)
	}

	job, err := h.jobs.CreateJob(r.Context(), req.Kind, req.Query, req.Pages)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetJob returns one job by id.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "id", jobID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs returns recent jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

// ListMovies returns stored movies. Sort accepts recent (default), rating
// or released.
func (h *Handlers) ListMovies(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	sort := r.URL.Query().Get("sort")

	movies, err := h.db.ListMovies(r.Context(), limit, offset, sort)
	if err != nil {
		h.logger.Error("failed to list movies", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list movies")
		return
	}
	h.respondJSON(w, http.StatusOK, movies)
}

// GetMovie returns one stored movie by its site id.
func (h *Handlers) GetMovie(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	if externalID == "" {
		h.respondError(w, http.StatusBadRequest, "movie ID is required")
		return
	}

	movie, err := h.db.GetMovieByExternalID(r.Context(), externalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.respondError(w, http.StatusNotFound, "movie not found")
			return
		}
		h.logger.Error("failed to get movie", "external_id", externalID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get movie")
		return
	}
	h.respondJSON(w, http.StatusOK, movie)
}

// GetStats returns job history and catalog completeness counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// Health reports process liveness and database reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if _, err := h.db.CountMovies(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.respondJSON(w, code, map[string]string{"status": status})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
