package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Info describes a running watcher
type Info struct {
	PID       int
	Dir       string // watched inbox
	StartTime time.Time
	IsRunning bool
}

// Manager handles the background watcher's lifecycle through a PID file
type Manager struct {
	stateDir  string
	pidFile   string
	pauseFile string
	logFile   string
}

// NewManager keeps its state under stateDir, creating it if needed
func NewManager(stateDir string) (*Manager, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create daemon dir: %w", err)
	}
	return &Manager{
		stateDir:  stateDir,
		pidFile:   filepath.Join(stateDir, "watch.pid"),
		pauseFile: filepath.Join(stateDir, "paused"),
		logFile:   filepath.Join(stateDir, "watch.log"),
	}, nil
}

// PauseFile is the path whose existence pauses the watcher
func (m *Manager) PauseFile() string { return m.pauseFile }

// LogFile is where a background watcher writes its output
func (m *Manager) LogFile() string { return m.logFile }

// GetStatus reads the PID file, removing it if the process is gone
func (m *Manager) GetStatus() (*Info, error) {
	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Info{}, nil
		}
		return nil, fmt.Errorf("failed to read PID file: %w", err)
	}

	// PID|DIR|TIMESTAMP
	parts := strings.Split(strings.TrimSpace(string(data)), "|")
	if len(parts) != 3 {
		_ = os.Remove(m.pidFile)
		return &Info{}, nil
	}

	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		_ = os.Remove(m.pidFile)
		return &Info{}, nil
	}

	started, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		started = time.Now()
	}

	if !isProcessRunning(pid) {
		_ = os.Remove(m.pidFile)
		return &Info{}, nil
	}

	return &Info{
		PID:       pid,
		Dir:       parts[1],
		StartTime: started,
		IsRunning: true,
	}, nil
}

// WritePIDFile records a watcher for dir
func (m *Manager) WritePIDFile(pid int, dir string) error {
	data := fmt.Sprintf("%d|%s|%s\n", pid, dir, time.Now().Format(time.RFC3339))
	return os.WriteFile(m.pidFile, []byte(data), 0644)
}

// RemovePIDFile removes the PID file
func (m *Manager) RemovePIDFile() error {
	err := os.Remove(m.pidFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Pause makes a running watcher ignore new files until Resume
func (m *Manager) Pause() error {
	return os.WriteFile(m.pauseFile, []byte(time.Now().Format(time.RFC3339)+"\n"), 0644)
}

// Resume undoes Pause
func (m *Manager) Resume() error {
	err := os.Remove(m.pauseFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// IsPaused reports whether the pause file exists
func (m *Manager) IsPaused() bool {
	_, err := os.Stat(m.pauseFile)
	return err == nil
}

// Stop sends SIGTERM and waits up to five seconds before SIGKILL
func (m *Manager) Stop() error {
	info, err := m.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get watcher status: %w", err)
	}
	if !info.IsRunning {
		return fmt.Errorf("watcher is not running")
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessRunning(info.PID) {
			return m.RemovePIDFile()
		}
	}

	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill watcher: %w", err)
	}
	return m.RemovePIDFile()
}

// StartBackground re-executes the current binary with args, detached,
// logging to LogFile.
func (m *Manager) StartBackground(dir string, args []string) error {
	info, err := m.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to check watcher status: %w", err)
	}
	if info.IsRunning {
		return fmt.Errorf("watcher already running (PID %d, watching %s)", info.PID, info.Dir)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	f, err := os.OpenFile(m.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	cmd.Stdout = f
	cmd.Stderr = f

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if err := m.WritePIDFile(cmd.Process.Pid, dir); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	time.Sleep(100 * time.Millisecond)
	if !isProcessRunning(pid) {
		return fmt.Errorf("watcher failed to start (check %s for errors)", m.logFile)
	}
	return nil
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence
	return process.Signal(syscall.Signal(0)) == nil
}

// FormatUptime formats d as "1d 2h 3m", "2h 3m", "3m 4s" or "4s"
func FormatUptime(d time.Duration) string {
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
