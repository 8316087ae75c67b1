package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/micareg/internal/clean"
	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/logging"
	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/validate"
)

// multipartMemory is the in-memory part of a multipart upload.
const multipartMemory = 32 << 20

var errNoFile = errors.New("no file uploaded")

// RegisterInfo describes one register for GET /api/registers.
type RegisterInfo struct {
	Type      schema.RegisterType `json:"type"`
	Label     string              `json:"label"`
	Separator string              `json:"separator"`
	Columns   []string            `json:"columns"`
	Required  []string            `json:"required"`
}

// CleanResponse is returned by the clean endpoint.
type CleanResponse struct {
	Report *clean.Report `json:"report"`
	CSV    string        `json:"csv"`
}

// TasksResponse is returned by the tasks endpoint.
type TasksResponse struct {
	Validation *validate.Report    `json:"validation"`
	Tasks      []remediation.Task `json:"tasks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"registers": schema.Count(),
	})
}

func (s *Server) handleListRegisters(w http.ResponseWriter, r *http.Request) {
	all := schema.All()
	out := make([]RegisterInfo, 0, len(all))
	for _, d := range all {
		out = append(out, RegisterInfo{
			Type:      d.Type,
			Label:     d.Label,
			Separator: string(d.Comma()),
			Columns:   d.Columns(),
			Required:  d.RequiredColumns(),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	d, t, name, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.service.Validate(t, d, name))
}

// handleClean returns the report and the cleaned CSV. With ?format=csv the
// cleaned file itself is returned as an attachment.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	d, t, name, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res := s.service.Clean(t, d, name)

	var buf bytes.Buffer
	if err := csvio.Encode(&buf, res.Table, d.Comma()); err != nil {
		respondError(w, r, fmt.Errorf("encode cleaned csv: %w", err))
		return
	}
	res.Report.OutputFile = cleanName(name, d.Type)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Report.OutputFile))
		w.Header().Set("X-Clean-Changes", fmt.Sprint(len(res.Report.Mutations())))
		if _, err := w.Write(buf.Bytes()); err != nil {
			logging.FromContext(r.Context()).Error("write cleaned csv failed", "error", err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, CleanResponse{Report: res.Report, CSV: buf.String()})
}

// handleTasks cleans the upload, validates the result and returns the
// remediation tasks for what cleaning could not fix.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	d, t, name, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res := s.service.Clean(t, d, name)

	cleaned := res.Table.Clone()
	cleaned.Encoding = csvio.EncodingInfo{Detected: csvio.EncodingUTF8BOM, Confidence: 1.0}
	report := s.service.Validate(cleaned, d, cleanName(name, d.Type))

	writeJSON(w, r, http.StatusOK, TasksResponse{
		Validation: report,
		Tasks:      s.service.GenerateTasks(report, res.Table),
	})
}

// readUpload resolves the register and parses the uploaded CSV. The file is
// taken from the multipart field "file" or, failing that, the raw body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (schema.Descriptor, *csvio.Table, string, error) {
	d, err := schema.Lookup(chi.URLParam(r, "register"))
	if err != nil {
		return schema.Descriptor{}, nil, "", err
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	r.Body = body

	var (
		data []byte
		name = "upload.csv"
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return d, nil, "", fmt.Errorf("parse upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return d, nil, "", errNoFile
		}
		defer file.Close()
		name = filepath.Base(header.Filename)
		if data, err = io.ReadAll(file); err != nil {
			return d, nil, "", fmt.Errorf("read upload: %w", err)
		}
	} else {
		if data, err = io.ReadAll(body); err != nil {
			return d, nil, "", fmt.Errorf("read upload: %w", err)
		}
		if len(data) == 0 {
			return d, nil, "", errNoFile
		}
	}

	t, err := csvio.Parse(data, d.Comma())
	if err != nil {
		return d, nil, "", err
	}

	logging.FromContext(r.Context()).Info("upload parsed",
		"register", d.Type,
		"file", name,
		"rows", len(t.Rows),
		"bytes", len(data),
	)
	return d, t, name, nil
}

// cleanName derives the cleaned file name for an upload.
func cleanName(name string, rt schema.RegisterType) string {
	if parsed, date, ok := schema.ParseFileName(name); ok && parsed == rt {
		return schema.CleanFileName(rt, date)
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_clean.csv"
}
