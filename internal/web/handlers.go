package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/xlsx2marc/internal/core"
	"github.com/JonMunkholm/xlsx2marc/internal/logging"
	"github.com/JonMunkholm/xlsx2marc/internal/marc"
	"github.com/JonMunkholm/xlsx2marc/internal/sheet"
	"github.com/JonMunkholm/xlsx2marc/internal/web/templates"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

const templateFileName = "marc_template.xlsx"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) indexData() templates.IndexData {
	return templates.IndexData{
		DefaultLanguage: s.service.DefaultLanguage(),
		Fields:          marc.SupportedFields(),
		HoldingsTag:     marc.HoldingsTag,
	}
}

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(s.indexData()).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// handleUpload converts the uploaded workbook and returns the .mrk file as
// an attachment. Nothing is written until the whole file is rendered.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, err, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %w", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	conv, err := s.service.Convert(ctx, core.ConvertRequest{
		FileName: header.Filename,
		File:     file,
		Language: r.FormValue("lang"),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conv.FileName))
	h.Set("Content-Length", strconv.Itoa(len(conv.Body)))
	h.Set("X-Conversion-ID", conv.ID.String())
	if _, err := w.Write(conv.Body); err != nil {
		logging.WithFields(r.Context(), "conversion_id", conv.ID, "file", conv.FileName).Warn("write export", "error", err)
	}
}

// handleHealth reports liveness and conversion slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":      "ok",
		"conversions": s.service.LimiterStatus(),
	})
}

// handleHistory lists recent conversions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Convert.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid limit",
				Message: "limit must be a positive integer",
				Code:    "HTTP400",
			})
			return
		}
		limit = min(n, s.cfg.Convert.HistoryLimit)
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"entries": entries, "count": len(entries)})
}

// SchemaResponse describes the columns the converter understands.
type SchemaResponse struct {
	Version         int      `json:"version"`
	Fields          []string `json:"fields"`
	KeyFields       []string `json:"key_fields"`
	MultiValued     []string `json:"multi_valued"`
	Delimiter       string   `json:"delimiter"`
	HoldingsPattern string   `json:"holdings_pattern"`
	HoldingsOrder   []string `json:"holdings_order"`
	DefaultLanguage string   `json:"default_language"`
}

// handleSchema returns the supported columns and grouping rules.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	order := make([]string, len(marc.HoldingsOrder))
	for i, c := range marc.HoldingsOrder {
		order[i] = string(c)
	}
	writeJSON(w, SchemaResponse{
		Version:         marc.KeySchemaVersion,
		Fields:          marc.SupportedFields(),
		KeyFields:       marc.KeyFields,
		MultiValued:     marc.MultiValuedFields,
		Delimiter:       marc.Delimiter,
		HoldingsPattern: marc.HoldingsTag + "$<letter or digit>",
		HoldingsOrder:   order,
		DefaultLanguage: s.service.DefaultLanguage(),
	})
}

// handleTemplate returns a blank workbook with every supported header.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := sheet.Template("Catalog", marc.TemplateHeaders())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", templateFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("write template", "error", err)
	}
}
