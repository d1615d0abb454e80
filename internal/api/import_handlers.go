package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/fmuoria/recruit-crm/internal/ingestion"
	"github.com/fmuoria/recruit-crm/internal/models"
)

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, ingestion.MaxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// handleUpload parses an uploaded sheet into an upload session and resolves its headers
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ingestion.MaxUploadSize)
	if err := r.ParseMultipartForm(ingestion.MaxUploadSize); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	res, err := s.agent.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*models.UploadResult
	}{true, res})
}

// handleParse previews an uploaded file or pasted clipboard text
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var (
		res *models.ParseResult
		err error
	)

	switch {
	case isMultipart(r):
		r.Body = http.MaxBytesReader(w, r.Body, ingestion.MaxUploadSize)
		if err := r.ParseMultipartForm(ingestion.MaxUploadSize); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
			return
		}
		file, header, ferr := r.FormFile("file")
		if ferr == nil {
			defer file.Close()
			res, err = s.agent.Parse(r.Context(), header.Filename, file)
			break
		}
		res, err = s.agent.ParseText(r.Context(), r.FormValue("text"))
	case isJSON(r):
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err = s.agent.ParseText(r.Context(), body.Text)
	default:
		r.Body = http.MaxBytesReader(w, r.Body, ingestion.MaxUploadSize)
		res, err = s.agent.ParseText(r.Context(), r.FormValue("text"))
	}
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*models.ParseResult
	}{true, res})
}

type validateResponse struct {
	OK             bool                  `json:"ok"`
	Rows           []models.ValidatedRow `json:"rows"`
	NormalizedRows []models.Row          `json:"normalized_rows"`
	Errors         []models.InvalidRow   `json:"errors"`
}

// handleValidate checks mapped rows without saving them
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.agent.Validate(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	out := validateResponse{
		OK:             true,
		Rows:           res.Rows,
		NormalizedRows: make([]models.Row, 0, len(res.Rows)),
		Errors:         []models.InvalidRow{},
	}
	for _, row := range res.Rows {
		out.NormalizedRows = append(out.NormalizedRows, row.Data)
		if len(row.Errors) > 0 {
			out.Errors = append(out.Errors, models.InvalidRow{RowIndex: row.RowIndex, Errors: row.Errors})
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleCommit inserts the valid rows of a batch
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req models.CommitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RequirementID <= 0 {
		s.respondError(w, http.StatusBadRequest, "requirement_id is required")
		return
	}

	res, err := s.agent.Commit(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*models.CommitResult
	}{true, res})
}

// handleRemember reinforces confirmed pairs without importing
func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pairs []models.MappingPair `json:"pairs"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.agent.Remember(r.Context(), body.Pairs)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "upserts": n})
}

// handleMappingSummary counts matched and skipped columns of an upload
func (s *Server) handleMappingSummary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UploadID string                `json:"upload_id"`
		Mapping  models.ColumnMappings `json:"mapping"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.UploadID) == "" {
		s.respondError(w, http.StatusBadRequest, "upload_id is required")
		return
	}

	sum, err := s.agent.MappingSummary(r.Context(), body.UploadID, body.Mapping)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*models.MappingSummary
	}{true, sum})
}

// handleMappings lists the learned mapping memory
func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.agent.LearnedMappings(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if mappings == nil {
		mappings = []models.LearnedMapping{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"mappings": mappings})
}

// handleUploads lists upload ids still on disk
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.agent.ListUploads(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"uploads": ids})
}
