// Package monitor periodically writes a snapshot of the running session to a
// status file that operators can tail.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/sentry/pkg/core"
)

const defaultInterval = time.Second

// Status is one snapshot of the controller and its recording.
type Status struct {
	Time         time.Time          `json:"time"`
	Session      string             `json:"session"`
	Storage      string             `json:"storage"`
	Tick         uint64             `json:"tick"`
	Frames       uint64             `json:"frames"`
	Shots        int                `json:"shots"`
	Authority    core.Authority     `json:"authority"`
	Ammunition   string             `json:"ammunition"`
	Heat         float64            `json:"heat"`
	Overheated   bool               `json:"overheated"`
	Power        float64            `json:"power"`
	Depleted     bool               `json:"depleted"`
	Designations int                `json:"designations"`
	Refusal      core.RefusalReason `json:"refusal,omitempty"`
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	StatusPath string
	// Interval between snapshots. Zero means one second.
	Interval time.Duration
	Status   func() Status
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{
		deps: deps,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// WriteStatus takes one snapshot and replaces the status file with it.
func (s *Service) WriteStatus() error {
	status := s.deps.Status()
	if status.Time.IsZero() {
		status.Time = time.Now()
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Status == nil || s.deps.StatusPath == "" {
		s.mu.Unlock()
		return fmt.Errorf("monitor needs a status source and path")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "path", s.deps.StatusPath, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing final status", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor after a final snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
