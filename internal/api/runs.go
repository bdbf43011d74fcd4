package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ugoku-core/internal/audit"
	"github.com/nerrad567/ugoku-core/internal/device"
	"github.com/nerrad567/ugoku-core/internal/journal"
	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// handleGetRun returns the live execution snapshot.
func (s *Server) handleGetRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runs.Snapshot())
}

// handleStopRun cancels the current run. The dispatcher halts at its next
// checkpoint; an attempt already on the wire is not interrupted.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	exec := s.runs.Snapshot()
	if exec.State != sequencer.StateRunning {
		writeError(w, http.StatusConflict, ErrCodeConflict, "no run in progress")
		return
	}

	by := "anonymous"
	if c := claimsFromContext(r.Context()); c != nil {
		by = c.Subject
	}
	s.logger.Warn("run stop requested over API", "run_id", exec.ID, "by", by)
	s.recordAudit(r, &audit.Entry{
		Action:  audit.ActionRunStop,
		RunID:   exec.ID,
		Actor:   by,
		Source:  audit.SourceAPI,
		Details: map[string]any{"remote_addr": r.RemoteAddr, "cursor": exec.Cursor},
	})
	s.stop()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": exec.ID,
		"status": "stopping",
	})
}

type runDetail struct {
	Run      sequencer.Execution `json:"run"`
	Outcomes []sequencer.Outcome `json:"outcomes"`
}

// handleListRuns returns recent journal runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run journal not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.journal.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetJournalRun returns one journal run with its outcomes.
func (s *Server) handleGetJournalRun(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run journal not configured")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.journal.GetRun(r.Context(), id)
	if errors.Is(err, journal.ErrRunNotFound) {
		writeNotFound(w, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("getting run", "run_id", id, "error", err)
		writeInternalError(w, "failed to get run")
		return
	}
	outcomes, err := s.journal.ListOutcomes(r.Context(), id)
	if err != nil {
		s.logger.Error("listing outcomes", "run_id", id, "error", err)
		writeInternalError(w, "failed to list outcomes")
		return
	}
	if outcomes == nil {
		outcomes = []sequencer.Outcome{}
	}
	writeJSON(w, http.StatusOK, runDetail{Run: *run, Outcomes: outcomes})
}

type cameraView struct {
	ID          string          `json:"id"`
	Endpoint    string          `json:"endpoint"`
	Settings    device.Settings `json:"settings,omitempty"`
	RefreshedAt *time.Time      `json:"refreshed_at,omitempty"`
}

type turntableView struct {
	ID       string `json:"id"`
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
	SpeedRPM int    `json:"speed_rpm"`
}

// handleListDevices returns every registered device with its advisory
// state: the last camera settings snapshot and the turntable speed.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	cams := make([]cameraView, 0, len(s.devices.Cameras()))
	for _, c := range s.devices.Cameras() {
		settings, at := c.Snapshot()
		v := cameraView{ID: c.ID, Endpoint: c.Endpoint, Settings: settings}
		if !at.IsZero() {
			v.RefreshedAt = &at
		}
		cams = append(cams, v)
	}

	tables := make([]turntableView, 0, len(s.devices.Turntables()))
	for _, t := range s.devices.Turntables() {
		tables = append(tables, turntableView{
			ID:       t.ID,
			Port:     t.Port,
			BaudRate: t.BaudRate,
			SpeedRPM: t.SpeedRPM(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cameras":    cams,
		"turntables": tables,
	})
}
