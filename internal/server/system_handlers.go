package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type systemStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`

	RequestsInFlight int `json:"requests_in_flight"`
	RequestsInWindow int `json:"requests_in_window"`
}

// handleSystemStatus reports process health plus the outbound budget state.
// GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercents) == 0 {
		cpuPercents = []float64{0}
	}

	var memPercent float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}

	status := systemStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		CPUPercent:    cpuPercents[0],
		MemoryPercent: memPercent,
	}
	if s.governor != nil {
		status.RequestsInFlight = s.governor.InFlight()
		status.RequestsInWindow = s.governor.GrantedInWindow()
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleBackupList lists offsite backup archives, newest first.
// GET /api/backups
func (s *Server) handleBackupList(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list backups")
		s.writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

// handleBackupCreate runs an immediate backup outside the schedule.
// POST /api/backups
func (s *Server) handleBackupCreate(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	if err := s.backups.CreateAndUploadBackup(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Manual backup failed")
		s.writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "backup completed"})
}
