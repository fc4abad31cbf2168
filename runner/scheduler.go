package runner

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Scheduler triggers automatic pipeline runs based on the schedules declared
// in registered pipeline files. Steps within a triggered run still execute
// strictly in order; only whole runs are started in the background.
type Scheduler struct {
	registry *Registry
	runner   *Runner
	baseDir  string
	stopChan chan struct{}
	lastRuns map[string]time.Time // track last execution per schedule
	mu       sync.RWMutex         // protect lastRuns and runningJobs
	running  map[string]bool      // track currently running schedules
}

// NewScheduler creates a new scheduler instance
func NewScheduler(registry *Registry, runner *Runner, baseDir string) *Scheduler {
	return &Scheduler{
		registry: registry,
		runner:   runner,
		baseDir:  baseDir,
		stopChan: make(chan struct{}),
		lastRuns: make(map[string]time.Time),
		running:  make(map[string]bool),
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	log.Println("📅 Scheduler started")
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run tick immediately on start
	s.tick()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopChan:
			log.Println("📅 Scheduler stopped")
			return
		}
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// tick checks all schedules and triggers runs if needed
func (s *Scheduler) tick() {
	for _, reg := range s.registry.Pipelines {
		path := reg.FilePath(s.baseDir)

		pipeline, err := LoadPipeline(path)
		if err != nil {
			// Skip pipelines that fail to load; they may be mid-edit
			continue
		}
		if len(pipeline.Schedules) == 0 {
			continue
		}

		for i, schedule := range pipeline.Schedules {
			scheduleKey := fmt.Sprintf("%s-schedule-%d", reg.Name, i)

			s.mu.RLock()
			lastRun := s.lastRuns[scheduleKey]
			isRunning := s.running[scheduleKey]
			s.mu.RUnlock()

			if isRunning {
				continue
			}
			if !s.shouldRun(schedule, lastRun) {
				continue
			}

			s.mu.Lock()
			s.running[scheduleKey] = true
			s.lastRuns[scheduleKey] = time.Now()
			s.mu.Unlock()

			go func(name string, p *Pipeline, key string) {
				s.executeSchedule(name, p)

				s.mu.Lock()
				delete(s.running, key)
				s.mu.Unlock()
			}(reg.Name, pipeline, scheduleKey)
		}
	}
}

// shouldRun determines if a schedule should be triggered now
func (s *Scheduler) shouldRun(schedule Schedule, lastRun time.Time) bool {
	now := time.Now()

	// Time-based schedule (at: "HH:MM")
	if schedule.At != "" {
		hour, minute, err := parseAtTime(schedule.At)
		if err != nil {
			log.Printf("⚠️  Invalid time format '%s': %v", schedule.At, err)
			return false
		}

		if now.Hour() == hour && now.Minute() == minute {
			// Only run once per day at this time
			if lastRun.IsZero() || now.Sub(lastRun) >= 23*time.Hour {
				return true
			}
		}
		return false
	}

	// Interval-based schedule (every: "1h", "30m", etc.)
	if schedule.Every != "" {
		interval, err := parseInterval(schedule.Every)
		if err != nil {
			log.Printf("⚠️  Invalid interval format '%s': %v", schedule.Every, err)
			return false
		}

		if lastRun.IsZero() || now.Sub(lastRun) >= interval {
			return true
		}
		return false
	}

	return false
}

// executeSchedule runs a pipeline triggered by its schedule
func (s *Scheduler) executeSchedule(name string, pipeline *Pipeline) {
	log.Printf("⏰ Schedule triggered: %s (%d steps)", name, len(pipeline.Steps))

	result, err := s.runner.RunPipeline(context.Background(), name, pipeline.Steps)
	if err != nil {
		log.Printf("❌ Scheduled run failed for %s: %v", name, err)
		return
	}
	if result.Halted() {
		log.Printf("🛑 Scheduled run halted for %s at step %d", name, *result.HaltedAt)
		return
	}
	log.Printf("✅ Scheduled run completed: %s", name)
}

// parseAtTime parses "HH:MM" format
func parseAtTime(at string) (hour, minute int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format, expected HH:MM")
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour")
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute")
	}

	return hour, minute, nil
}

// parseInterval parses duration strings like "1h", "30m", "1h30m"
func parseInterval(every string) (time.Duration, error) {
	// Handle combined formats like "1h30m"
	if strings.Contains(every, "h") && strings.Contains(every, "m") {
		re := regexp.MustCompile(`(\d+)h(\d+)m`)
		matches := re.FindStringSubmatch(every)
		if len(matches) == 3 {
			hours, _ := strconv.Atoi(matches[1])
			minutes, _ := strconv.Atoi(matches[2])
			return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
		}
	}

	duration, err := time.ParseDuration(every)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format")
	}

	return duration, nil
}
