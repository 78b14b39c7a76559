package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// CheckRunning reports whether a daemon process is already running,
// based on the PID file in dataDir.
func CheckRunning(dataDir string) (bool, int) {
	pidFile := filepath.Join(dataDir, "pingwatch.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false, 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// Signal 0 only checks for existence.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, 0
	}
	return true, pid
}

// SendStop asks the running daemon to shut down via SIGTERM.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}
	return nil
}

// StatusFile holds serialized daemon status for the status command.
type StatusFile struct {
	Running   bool        `json:"running"`
	PID       int         `json:"pid"`
	StartTime string      `json:"start_time"`
	Uptime    string      `json:"uptime"`
	Jobs      []JobStatus `json:"jobs"`
}

// WriteStatusFile serializes the daemon status into dataDir.
func WriteStatusFile(dataDir string, status *Status) error {
	sf := StatusFile{
		Running:   status.Running,
		PID:       status.PID,
		StartTime: status.StartTime.Format("2006-01-02 15:04:05"),
		Uptime:    status.Uptime.String(),
		Jobs:      status.Jobs,
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "status.json"), data, 0o644)
}

// ReadStatusFile reads the last written daemon status from dataDir.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, "status.json"))
	if err != nil {
		return nil, err
	}

	var sf StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	return &sf, nil
}
