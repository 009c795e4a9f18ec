package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/sheetsync/internal/core"
	"github.com/JonMunkholm/sheetsync/internal/logging"
)

// parseIntParam parses a positive integer query parameter, falling back to
// defaultVal when absent or invalid.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	primary := ""
	if def, ok := core.Primary(); ok {
		primary = def.Key
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"sheets":  s.service.ListSheets(),
		"primary": primary,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.service.Status(r.Context(), parseIntParam(r, "limit", 0))
	writeJSON(w, r, http.StatusOK, report)
}

// handleValidate compares a sample of the primary sheet with the store.
// An upstream failure answers 502.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.ValidateAgainstStore(r.Context(), core.ValidateOptions{
		SampleLimit: parseIntParam(r, "limit", 0),
		IncludeAll:  r.URL.Query().Get("all") == "true",
	})
	if err != nil {
		writeError(w, r, err, statusFor(err, http.StatusBadGateway))
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// handleExportLogs streams recent run logs as CSV. ?sheet filters by sheet
// key and ?limit caps the row count.
func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.service.RecentRuns(r.Context(), r.URL.Query().Get("sheet"), parseIntParam(r, "limit", 0))
	if err != nil {
		writeError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	filename := fmt.Sprintf("sync_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"ID", "Run ID", "Sheet", "Sync Type", "Status",
		"Created", "Updated", "Deleted", "Skipped",
		"Errors", "Duration Ms", "Trigger", "Created At",
	})
	for _, l := range logs {
		_ = cw.Write([]string{
			l.ID,
			l.RunID,
			l.SheetName,
			l.SyncType,
			string(l.Status),
			strconv.Itoa(l.Created),
			strconv.Itoa(l.Updated),
			strconv.Itoa(l.Deleted),
			strconv.Itoa(l.Skipped),
			strconv.Itoa(len(l.Errors)),
			strconv.FormatInt(l.DurationMs, 10),
			l.Trigger,
			l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("run log export failed", "error", err)
	}
}
