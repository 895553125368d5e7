package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/allstarteams/sectional-reports/internal/rendering"
	"github.com/allstarteams/sectional-reports/internal/reports"
	"github.com/allstarteams/sectional-reports/internal/server/middleware"
	"github.com/allstarteams/sectional-reports/internal/types"
)

// pathUser parses {userId} and checks that the caller may act on it.
func (s *Server) pathUser(r *http.Request) (int64, error) {
	raw := r.PathValue("userId")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, &ErrValidation{Field: "userId", Message: fmt.Sprintf("invalid user id %q", raw)}
	}
	p, err := middleware.GetPrincipal(r)
	if err != nil || !p.CanAccess(userID) {
		return 0, errAccessDenied
	}
	return userID, nil
}

func (s *Server) requireAdmin(r *http.Request) error {
	p, err := middleware.GetPrincipal(r)
	if err != nil || !p.Admin {
		return errAccessDenied
	}
	return nil
}

func pathSection(r *http.Request) (int, error) {
	raw := r.PathValue("sectionId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ErrValidation{Field: "sectionId", Message: fmt.Sprintf("invalid section id %q", raw)}
	}
	return id, nil
}

func reportType(r *http.Request) types.ReportType {
	return types.ReportType(r.PathValue("reportType"))
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ErrValidation{Message: "Invalid JSON body"}
	}
	return nil
}

// handleGenerate starts or restarts generation without waiting for it.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.flags.PipelineAvailable(r.Context()) {
		s.writeError(w, r, errPipelineUnavailable)
		return
	}

	var req types.GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		if _, perr := types.ParseReportType(req.ReportType); perr != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", reports.ErrInvalidReportType, perr))
			return
		}
		s.writeError(w, r, &ErrValidation{Message: err.Error()})
		return
	}

	ack, err := s.service.Trigger(r.Context(), userID, types.ReportType(req.ReportType), reports.TriggerOptions{
		Regenerate:       req.Regenerate,
		SpecificSections: req.SpecificSections,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ack)
}

// handleProgress returns the snapshot of a pair. A pair without a job is pending, not 404.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	progress, err := s.service.Progress(r.Context(), userID, reportType(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "progress": progress})
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var sectionID *int
	if raw := r.URL.Query().Get("sectionId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, &ErrValidation{Field: "sectionId", Message: fmt.Sprintf("invalid section id %q", raw)})
			return
		}
		sectionID = &id
	}

	secs, err := s.service.Sections(r.Context(), userID, reportType(r), sectionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"userId":     userID,
		"reportType": reportType(r),
		"sections":   secs,
	})
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sectionID, err := pathSection(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.SectionUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "sectionContent", Message: err.Error()})
		return
	}

	if err := s.service.UpdateSection(r.Context(), userID, reportType(r), sectionID, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "message": "Section updated successfully"})
}

// handleRegenerateSection regenerates one section inside the request.
func (s *Server) handleRegenerateSection(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.flags.PipelineAvailable(r.Context()) {
		s.writeError(w, r, errPipelineUnavailable)
		return
	}
	sectionID, err := pathSection(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	section, err := s.service.RegenerateSection(r.Context(), userID, reportType(r), sectionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Section regenerated successfully",
		"section": section,
	})
}

func (s *Server) handleFinalReport(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := rendering.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: "format", Message: err.Error()})
		return
	}

	report, err := s.service.FinalReport(r.Context(), userID, reportType(r), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	disposition := "inline"
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		disposition = fmt.Sprintf("attachment; filename=%q", report.Filename)
	} else if format != rendering.FormatHTML {
		disposition = fmt.Sprintf("inline; filename=%q", report.Filename)
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Body)
}

type statusResponse struct {
	Success bool `json:"success"`
	*types.StatusSummary
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.service.Status(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, statusResponse{Success: true, StatusSummary: summary})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.service.Delete(r.Context(), userID, reportType(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "message": "Report deleted successfully"})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.service.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "reports": entries})
}

func (s *Server) handleSetPipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req types.PipelineAvailabilityRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "available", Message: "is required"})
		return
	}

	if err := s.flags.SetPipelineAvailable(r.Context(), *req.Available); err != nil {
		s.writeError(w, r, err)
		return
	}
	pipeline := types.PipelineAvailable
	if !*req.Available {
		pipeline = types.PipelineUnavailable
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "report_pipeline": pipeline})
}
