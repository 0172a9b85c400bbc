// Package api exposes the scoring engine over HTTP: pure score queries,
// formula compilation with diagnostics, condition persistence, and the rule
// test harness.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cardcity/scoring-go/internal/formula"
	"github.com/cardcity/scoring-go/internal/harness"
	"github.com/cardcity/scoring-go/internal/scoring"
	"github.com/cardcity/scoring-go/internal/store"
)

// Server handles HTTP requests.
type Server struct {
	store  *store.Store
	logger *log.Logger

	// Draft compilation: edits stream through the debounced queue, and
	// only the latest draft's result is ever published for polling.
	drafts  *formula.CompileQueue
	draftMu sync.Mutex
	draft   *formula.CompilationResult
}

// NewServer creates an API server over the given condition store.
func NewServer(st *store.Store) *Server {
	s := &Server{
		store:  st,
		logger: log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile),
	}
	s.drafts = formula.NewCompileQueue(0, func(res formula.CompilationResult) {
		s.draftMu.Lock()
		s.draft = &res
		s.draftMu.Unlock()
	})
	return s
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/score", s.handleScore)
		r.Post("/board/summary", s.handleSummary)
		r.Post("/compile", s.handleCompile)
		r.Post("/compile/draft", s.handleDraftCompile)
		r.Get("/compile/draft", s.handleDraftResult)

		r.Route("/conditions", func(r chi.Router) {
			r.Get("/", s.handleListConditions)
			r.Post("/", s.handleSaveCondition)
			r.Get("/{id}", s.handleGetCondition)
			r.Delete("/{id}", s.handleDeleteCondition)
			r.Post("/{id}/test", s.handleRunTests)
		})

		r.Get("/fixtures", s.handleListFixtures)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": EngineVersion,
	})
}

// handleScore is the pure query the game-state machine calls whenever the
// board changes.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	if v := validatePlacements(req.Placements); v != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, v.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, scoring.ComputeScore(req.Placements, req.Config))
}

// handleSummary serves the rendering layer: tile map snapshot plus cluster
// and road-network coordinate lists for highlighting.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	if v := validatePlacements(req.Placements); v != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, v.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, scoring.Summarize(req.Placements))
}

// handleCompile compiles formula source and returns the full result,
// success or not, with positioned diagnostics. The HTTP status is 200
// either way — a failed compile is a valid answer, not a server fault.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "source must not be empty")
		return
	}
	s.writeJSON(w, http.StatusOK, formula.Compile(req.Source))
}

// handleDraftCompile feeds an in-progress editor draft to the debounced
// compile queue. Keystroke-rate submissions within the quiet period
// supersede each other, so only the latest draft is ever compiled and
// published. 202 because the result arrives after the quiet period; poll
// GET /compile/draft for it.
func (s *Server) handleDraftCompile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "source must not be empty")
		return
	}
	s.drafts.Submit(req.Source)
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(http.StatusAccepted)
}

// handleDraftResult returns the newest published draft result. Ready stays
// false until the first draft clears the quiet period.
func (s *Server) handleDraftResult(w http.ResponseWriter, r *http.Request) {
	s.draftMu.Lock()
	draft := s.draft
	s.draftMu.Unlock()

	state := DraftCompileState{}
	if draft != nil {
		state.Ready = true
		state.Result = draft
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleListConditions(w http.ResponseWriter, r *http.Request) {
	conds, err := s.store.List()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if conds == nil {
		conds = []*scoring.ScoringCondition{}
	}
	s.writeJSON(w, http.StatusOK, conds)
}

func (s *Server) handleGetCondition(w http.ResponseWriter, r *http.Request) {
	cond, err := s.store.Get(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "condition not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cond)
}

// handleSaveCondition validates, compiles and persists a condition. A
// condition that fails compilation or security validation is never saved
// (fail closed); the compile result is returned so the editor can show
// diagnostics.
func (s *Server) handleSaveCondition(w http.ResponseWriter, r *http.Request) {
	var cond scoring.ScoringCondition
	if !s.decode(w, r, &cond) {
		return
	}
	if v := validateCondition(&cond); v != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, v.Error())
		return
	}

	res := cond.Compile()
	if !res.OK {
		s.writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	if err := s.store.Save(&cond); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &cond)
}

func (s *Server) handleDeleteCondition(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "condition not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunTests runs one or all of a condition's test cases.
func (s *Server) handleRunTests(w http.ResponseWriter, r *http.Request) {
	cond, err := s.store.Get(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "condition not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	var req RunTestsRequest
	if !s.decode(w, r, &req) {
		return
	}
	opts := formula.Options{Debug: req.Debug}

	if req.CaseIndex != nil {
		i := *req.CaseIndex
		if i < 0 || i >= len(cond.TestCases) {
			s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "caseIndex out of range")
			return
		}
		s.writeJSON(w, http.StatusOK, harness.RunTest(cond, cond.TestCases[i], opts))
		return
	}
	s.writeJSON(w, http.StatusOK, harness.RunAllTests(cond, opts))
}

func (s *Server) handleListFixtures(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, harness.FixtureNames())
}

// --- helpers ---

// decode parses the JSON body into v. An empty body leaves v zero-valued,
// so endpoints with all-optional parameters accept bare POSTs.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	requestID := middleware.GetReqID(r.Context())
	s.logger.Printf("error type=%s status=%d request_id=%s path=%s message=%q",
		errType, status, requestID, r.URL.Path, message)
	s.writeJSON(w, status, APIError{
		Type:      errType,
		Message:   message,
		RequestID: requestID,
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, err.Error())
}

// recoverer converts panics into structured 500s. Engine panics are
// programming errors (e.g. malformed segment data slipping past
// validation); the response says so without killing the process.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				requestID := middleware.GetReqID(r.Context())
				s.logger.Printf("panic_recovered request_id=%s path=%s panic=%v", requestID, r.URL.Path, rvr)
				s.writeJSON(w, http.StatusInternalServerError, APIError{
					Type:      ErrTypeInternal,
					Message:   "internal server error",
					RequestID: requestID,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
