package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"srtfix/internal/batch"
	"srtfix/internal/history"
	"srtfix/internal/logging"
	"srtfix/internal/mapping"
	"srtfix/internal/repair"
	"srtfix/internal/textutil"
)

const (
	headerFailed     = "X-Srtfix-Failed"
	headerEncoding   = "X-Srtfix-Encoding"
	headerConfidence = "X-Srtfix-Confidence"
	headerRunID      = "X-Srtfix-Run-Id"
)

var errNoFiles = errors.New(`no "file" parts in request`)

type mappingResponse struct {
	Source     string             `json:"source"`
	Entries    []mapping.Entry    `json:"entries"`
	Duplicates []string           `json:"duplicates,omitempty"`
	Conflicts  []mapping.Conflict `json:"conflicts,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMapping(w http.ResponseWriter, _ *http.Request) {
	table := s.engine.Table()
	writeJSON(w, http.StatusOK, mappingResponse{
		Source:     table.Source(),
		Entries:    table.Entries(),
		Duplicates: table.Duplicates(),
		Conflicts:  table.Conflicts(),
	})
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r, 0)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	runner := &batch.Runner{
		Engine:  s.engine,
		Workers: s.opts.Workers,
		Suffix:  s.opts.Suffix,
		Logger:  s.opts.Logger,
	}
	ctx := r.Context()
	outcomes := runner.RunUploads(ctx, uploads)
	runID := s.record(r, outcomes)

	var failed []fileFailed
	for _, out := range outcomes {
		if out.OK() {
			continue
		}
		stage, _ := repair.StageOf(out.Err)
		failed = append(failed, fileFailed{Name: out.Path, Stage: string(stage), Error: out.Err.Error()})
	}
	if len(failed) == len(outcomes) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "no file could be repaired", Files: failed})
		return
	}

	var buf bytes.Buffer
	if _, err := batch.WriteArchive(&buf, outcomes); err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "archive build failed", "archive_failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "could not build archive")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": s.opts.ArchiveName}))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	if len(failed) > 0 {
		names := make([]string, len(failed))
		for i, f := range failed {
			names[i] = f.Name
		}
		h.Set(headerFailed, strings.Join(names, ","))
	}
	if runID != "" {
		h.Set(headerRunID, runID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRepairText(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r, 1)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	up := uploads[0]

	res, err := s.engine.ProcessBytes(up.Name, up.Data)
	out := batch.Outcome{Path: up.Name, Result: res, Err: err}
	runID := s.record(r, []batch.Outcome{out})
	if err != nil {
		stage, _ := repair.StageOf(err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Stage: string(stage)})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set(headerEncoding, res.Detection.Charset)
	h.Set(headerConfidence, strconv.Itoa(res.Detection.Confidence))
	if runID != "" {
		h.Set(headerRunID, runID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Text)
}

// readUploads collects "file" parts. A positive limit stops after that many.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request, limit int) ([]batch.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart request: %w", err)
	}

	var uploads []batch.Upload
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, batch.Upload{Name: uploadName(part, len(uploads)), Data: data})
		if limit > 0 && len(uploads) >= limit {
			break
		}
	}
	if len(uploads) == 0 {
		return nil, errNoFiles
	}
	return uploads, nil
}

func uploadName(part *multipart.Part, index int) string {
	name := filepath.Base(strings.ReplaceAll(part.FileName(), `\`, "/"))
	return textutil.SanitizeFileName(name, fmt.Sprintf("subtitle-%d.srt", index+1))
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// record journals outcomes and returns the run ID, or "" when history is off
// or recording failed. Failures here never fail the request.
func (s *Server) record(r *http.Request, outcomes []batch.Outcome) string {
	store := s.opts.History
	if store == nil {
		return ""
	}
	ctx := r.Context()
	logger := logging.WithContext(ctx, s.logger)

	run, err := store.BeginRun(ctx, history.RunInfo{Origin: history.OriginHTTP, Mapping: s.engine.Table().Source()})
	if err != nil {
		logging.WarnWithContext(logger, "history run not recorded", "history_failed", logging.Error(err))
		return ""
	}
	if err := store.RecordOutcomes(ctx, run.ID, outcomes, nil); err != nil {
		logging.WarnWithContext(logger, "history files not recorded", "history_failed",
			logging.String(logging.FieldRunID, run.ID), logging.Error(err))
	}
	if err := store.FinishRun(ctx, run.ID, ""); err != nil {
		logging.WarnWithContext(logger, "history run not finished", "history_failed",
			logging.String(logging.FieldRunID, run.ID), logging.Error(err))
	}
	return run.ID
}

type historyRunResponse struct {
	Run   history.Run          `json:"run"`
	Files []history.FileRecord `json:"files"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.opts.History.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleHistoryRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.opts.History.FindRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, history.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := s.opts.History.Files(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, historyRunResponse{Run: *run, Files: files})
}
