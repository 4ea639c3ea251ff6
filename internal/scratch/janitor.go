package scratch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor sweeps scratch directories orphaned by a crash. Live deliveries are
// protected by the age threshold: anything younger than maxAge is in flight.
type Janitor struct {
	root     string
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewJanitor(log *slog.Logger, root string, maxAge time.Duration, schedule string) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		root:     root,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   log.With(slog.String("service", "janitor")),
	}
}

// Start runs one immediate sweep and then schedules recurring sweeps.
func (j *Janitor) Start() error {
	if err := j.Sweep(); err != nil {
		j.logger.Warn("initial sweep failed", slog.Any("error", err))
	}
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		if err := j.Sweep(); err != nil {
			j.logger.Warn("sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep removes every scratch directory under root older than maxAge.
func (j *Janitor) Sweep() error {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-j.maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(j.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			j.logger.Warn("remove stale scratch dir failed", slog.String("dir", dir), slog.Any("error", err))
			continue
		}
		j.logger.Info("removed stale scratch dir", slog.String("dir", dir))
	}
	return nil
}
