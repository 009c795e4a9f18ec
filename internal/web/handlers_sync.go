package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

const maxBodyBytes = 64 << 10

// syncRequest is the optional JSON body of the admin triggers. Query
// parameters of the same name are used when the body leaves them empty.
type syncRequest struct {
	Sheet   string `json:"sheet"`
	Mode    string `json:"mode"`
	Confirm bool   `json:"confirm"`
}

// syncResponse is returned by every trigger.
type syncResponse struct {
	Success bool                       `json:"success"`
	RunID   string                     `json:"runId"`
	Results map[string]core.SyncResult `json:"results"`
	Errors  []core.RowError            `json:"errors"`
}

// handleCronSync is the scheduled-caller trigger, authenticated by
// X-Cron-Secret. Mode and sheet come from the query string.
func (s *Server) handleCronSync(w http.ResponseWriter, r *http.Request) {
	mode, err := core.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	s.runSync(w, r, core.TriggerCron, r.URL.Query().Get("sheet"), mode)
}

// handleSync is the admin trigger. A full_reset request must carry
// confirm=true.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSyncRequest(w, r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	mode, err := core.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	trigger := core.TriggerManual
	if mode == core.ModeFullReset {
		if !req.Confirm {
			writeError(w, r, core.ErrConfirmationRequired, http.StatusBadRequest)
			return
		}
		trigger = core.TriggerFullReset
	}
	s.runSync(w, r, trigger, req.Sheet, mode)
}

// handleFullReset soft-deletes and rebuilds one sheet, or every sheet when
// none is named.
func (s *Server) handleFullReset(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSyncRequest(w, r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		writeError(w, r, core.ErrConfirmationRequired, http.StatusBadRequest)
		return
	}
	s.runSync(w, r, core.TriggerFullReset, req.Sheet, core.ModeFullReset)
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, trigger, sheet string, mode core.Mode) {
	ctx := runContext(r, trigger)
	opts := core.SyncOptions{Mode: mode}

	var results map[string]core.SyncResult
	if sheet = strings.TrimSpace(sheet); sheet != "" {
		res, err := s.service.SyncSheet(ctx, sheet, opts)
		if err != nil {
			writeError(w, r, err, statusFor(err, http.StatusInternalServerError))
			return
		}
		results = map[string]core.SyncResult{sheet: res}
	} else {
		all, err := s.service.SyncAll(ctx, opts)
		if err != nil {
			writeError(w, r, err, statusFor(err, http.StatusInternalServerError))
			return
		}
		results = all
	}

	resp := syncResponse{
		Success: core.AllSucceeded(results),
		Results: results,
		Errors:  core.FlattenErrors(results),
	}
	for _, res := range results {
		resp.RunID = res.RunID
		break
	}

	status := http.StatusOK
	if allFetchFailed(results) {
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, resp)
}

// allFetchFailed reports whether every result failed before any row was
// read.
func allFetchFailed(results map[string]core.SyncResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, res := range results {
		if res.Status != core.RunFailed || len(res.Errors) == 0 || res.Errors[0].Kind != core.ErrorKindFetch {
			return false
		}
	}
	return true
}

func decodeSyncRequest(w http.ResponseWriter, r *http.Request) (syncRequest, error) {
	var req syncRequest
	if r.Body != nil {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, errors.Join(errBadRequest, err)
		}
	}

	q := r.URL.Query()
	if req.Sheet == "" {
		req.Sheet = q.Get("sheet")
	}
	if req.Mode == "" {
		req.Mode = q.Get("mode")
	}
	if !req.Confirm {
		req.Confirm = q.Get("confirm") == "true"
	}
	return req, nil
}
