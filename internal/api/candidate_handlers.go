package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// filterFromQuery reads the export filters. ids, when present, wins over the text filters.
func filterFromQuery(r *http.Request) (models.CandidateFilter, error) {
	q := r.URL.Query()
	f := models.CandidateFilter{
		Name:     q.Get("name"),
		Phone:    q.Get("phone"),
		Email:    q.Get("email"),
		Location: q.Get("location"),
	}
	for _, part := range strings.Split(q.Get("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid candidate id %q", part)
		}
		f.IDs = append(f.IDs, id)
	}
	return f, nil
}

// handleExport streams a requirement's candidates as an XLSX download
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	filename, err := s.agent.ExportCandidates(r.Context(), reqID, filter, &buf)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn().Err(err).Int64("requirement_id", reqID).Msg("failed to write export")
	}
}

// handleStatus updates a candidate's pipeline status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var u models.StatusUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agent.UpdateStatus(r.Context(), id, u); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}
