// File: internal/server/handlers.go
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/browser"
	"github.com/xkilldash9x/voyant/internal/instruction"
)

// -- perception --

func (s *Server) handlePerceptionAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.AnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}

	var model *schemas.PageModel
	procStart := time.Now()
	err := s.withDriver(r.Context(), req.SessionID, func(d schemas.Driver) error {
		if req.URL != "" {
			if navErr := d.Navigate(r.Context(), browser.NormalizeURL(req.URL)); navErr != nil {
				return navErr
			}
		}
		var aErr error
		model, aErr = s.analyzer.Analyze(r.Context(), d)
		return aErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), model)
}

func (s *Server) handlePerceptionMode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.ModeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if !schemas.ValidPerceptionMode(req.Mode) {
		s.writeError(w, r, start, schemas.NewError(schemas.KindValidation, "server.perception",
			"mode must be one of lightning, quick, standard, deep, adaptive"))
		return
	}

	var result *schemas.PerceptionResult
	procStart := time.Now()
	err := s.withDriver(r.Context(), req.SessionID, func(d schemas.Driver) error {
		if req.URL != "" {
			if navErr := d.Navigate(r.Context(), browser.NormalizeURL(req.URL)); navErr != nil {
				return navErr
			}
		}
		var pErr error
		result, pErr = s.perception.Perceive(r.Context(), d, req.Mode)
		return pErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), result)
}

func (s *Server) handleFindElement(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.FindElementRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		s.writeError(w, r, start, schemas.NewError(schemas.KindValidation, "server.perception",
			"description is required"))
		return
	}

	var match *schemas.ElementMatch
	procStart := time.Now()
	err := s.withDriver(r.Context(), req.SessionID, func(d schemas.Driver) error {
		// The page model sharpens matching but its absence is not fatal.
		model, aErr := s.analyzer.Analyze(r.Context(), d)
		if aErr != nil {
			model = nil
		}
		var fErr error
		match, fErr = s.perception.FindElement(r.Context(), d, model, req.Description)
		return fErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), match)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.CommandRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if err := validateIntentText(req.Command); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.runInstruction(w, r, start, req.SessionID, req.Command)
}

func (s *Server) handleFormAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.FormAnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}

	var analysis *schemas.FormAnalysis
	procStart := time.Now()
	err := s.withDriver(r.Context(), req.SessionID, func(d schemas.Driver) error {
		var aErr error
		analysis, aErr = s.perception.AnalyzeForm(r.Context(), d, req.FormSelector)
		return aErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), analysis)
}

func (s *Server) handleFormAutofill(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.FormAutofillRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}

	var result *schemas.AutofillResult
	procStart := time.Now()
	err := s.withDriver(r.Context(), req.SessionID, func(d schemas.Driver) error {
		var fErr error
		result, fErr = s.perception.Autofill(r.Context(), d, req.FormSelector, req.ProfileName, req.UserProfile)
		return fErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), result)
}

// -- intelligence --

func (s *Server) handleIntelligenceAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.IntelligenceAnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if err := validateIntentText(req.UserIntent); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if req.Config != nil &&
		(req.Config.ConfidenceThreshold < 0 || req.Config.ConfidenceThreshold > 1) {
		s.writeError(w, r, start, schemas.NewError(schemas.KindValidation, "server.intelligence",
			"confidence_threshold must be between 0 and 1"))
		return
	}

	var model *schemas.PageModel
	if req.URL != "" {
		model = &schemas.PageModel{URL: req.URL, PageType: schemas.PageUnknown}
	}

	procStart := time.Now()
	analysis, err := s.intelligence.Analyze(r.Context(), req.UserIntent, model)
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	analysis.PageTitle = req.PageTitle
	s.writeSuccess(w, r, start, time.Since(procStart), analysis)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.RecommendRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}

	procStart := time.Now()
	rec, err := s.intelligence.Recommend(r.Context(), &req.Analysis, nil)
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), rec)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.FeedbackRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if req.ExecutionTimeMs < 0 || req.ExecutionTimeMs > schemas.MaxExecutionTimeMs {
		s.writeError(w, r, start, schemas.NewError(schemas.KindValidation, "server.intelligence",
			"execution_time_ms is out of range"))
		return
	}

	procStart := time.Now()
	err := s.intelligence.RecordFeedback(r.Context(), &schemas.FeedbackRecord{
		Recommendation:  req.Recommendation,
		ActualResult:    req.ActualResult,
		Success:         req.Success,
		ExecutionTimeMs: req.ExecutionTimeMs,
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), map[string]bool{"recorded": true})
}

// -- workflow --

func (s *Server) handleWorkflowRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.WorkflowRunRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}

	raw := strings.TrimSpace(req.Workflow)
	if raw == "" {
		s.writeError(w, r, start, schemas.NewError(schemas.KindValidation, "server.workflow",
			"workflow is required"))
		return
	}

	var wf *schemas.Workflow
	var parseErr error
	if strings.HasPrefix(raw, "{") {
		wf, parseErr = schemas.ParseWorkflowJSON([]byte(raw))
	} else {
		wf, parseErr = schemas.ParseWorkflowYAML([]byte(raw))
	}
	if parseErr != nil {
		s.writeError(w, r, start, schemas.NewError(schemas.KindValidation, "server.workflow",
			parseErr.Error()))
		return
	}

	var result *schemas.WorkflowResult
	procStart := time.Now()
	err := s.withDriver(r.Context(), "", func(d schemas.Driver) error {
		var xErr error
		result, xErr = s.workflows.Execute(r.Context(), d, wf, req.Inputs)
		return xErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), result)
}

// -- instruction --

func (s *Server) handleInstructionExecute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.InstructionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	if err := validateIntentText(req.Text); err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.runInstruction(w, r, start, req.SessionID, req.Text)
}

// runInstruction executes one natural-language command and records action
// metrics per executed step.
func (s *Server) runInstruction(w http.ResponseWriter, r *http.Request, start time.Time, sessionID, text string) {
	var outcome *instruction.Outcome
	procStart := time.Now()
	err := s.withDriver(r.Context(), sessionID, func(d schemas.Driver) error {
		var xErr error
		outcome, xErr = s.instructions.Execute(r.Context(), d, text)
		return xErr
	})
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}

	if s.metrics != nil {
		for _, res := range outcome.Results {
			s.metrics.ObserveBrowserAction(string(res.Action.Kind), res.Success)
		}
	}
	s.writeSuccess(w, r, start, time.Since(procStart), outcome)
}

// -- sessions --

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req schemas.SessionCreateRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, start, err)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	procStart := time.Now()
	sess, err := s.sessions.Create(r.Context(), req.SessionID, req.Metadata, ttl)
	if err != nil {
		s.writeError(w, r, start, err)
		return
	}
	s.writeSuccess(w, r, start, time.Since(procStart), sess.Info())
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessions := s.sessions.List()
	s.writeSuccess(w, r, start, 0, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	sess := s.sessions.Get(id)
	if sess == nil {
		s.writeError(w, r, start, schemas.NewError(schemas.KindNotFound, "server.session",
			"session not found"))
		return
	}
	s.writeSuccess(w, r, start, 0, sess.Info())
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	if !s.sessions.Remove(r.Context(), id) {
		s.writeError(w, r, start, schemas.NewError(schemas.KindNotFound, "server.session",
			"session not found"))
		return
	}
	s.writeSuccess(w, r, start, 0, map[string]string{"removed": id})
}

// -- health --

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Report()
	status := http.StatusOK
	if report.Status == schemas.StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func validateIntentText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return schemas.NewError(schemas.KindValidation, "server.instruction", "text is required")
	}
	if len(trimmed) > schemas.MaxUserIntentLen {
		return schemas.NewError(schemas.KindValidation, "server.instruction",
			"text exceeds the maximum length")
	}
	return nil
}
