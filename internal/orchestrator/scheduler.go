// Package orchestrator is the top-level supervisor: it resolves config,
// imports outstanding PRs and reconciles task files, then runs the bounded
// worker pool that drives internal/pipeline's per-improvement state
// machine to completion.
package orchestrator

import (
	"time"

	"github.com/ralphctl/ralph/internal/backlog"
	"github.com/ralphctl/ralph/internal/pipeline"
)

// Assignment is one task handed to a worker slot.
type Assignment struct {
	Text   string
	Source pipeline.TaskSource
	Key    string // source:text, released back to the scheduler on completion
}

// Scheduler implements spec.md §4.7.3's task acquisition order — triage
// before backlog, each task eligible iff its source:text key is not
// already in flight — plus the main-not-green sentinel's cooldown
// deferral. All methods are called only from the single scheduling-loop
// goroutine; Scheduler holds no lock of its own (ground: spec.md §5's
// "SchedulerState ... mutated only by the scheduling loop goroutine").
type Scheduler struct {
	Stores backlog.Stores

	tasksInFlight          map[string]struct{}
	mainNotGreenRetryAfter time.Time
}

// NewScheduler returns a Scheduler with empty in-flight tracking.
func NewScheduler(stores backlog.Stores) *Scheduler {
	return &Scheduler{Stores: stores, tasksInFlight: make(map[string]struct{})}
}

func taskKey(source pipeline.TaskSource, text string) string {
	return string(source) + ":" + text
}

// Acquire returns the next eligible task: triage first, then backlog. The
// main-not-green sentinel is skipped while s.mainNotGreenRetryAfter is in
// the future unless scanning both files turns up nothing else, in which
// case it is returned anyway as a last resort.
func (s *Scheduler) Acquire() (Assignment, bool, error) {
	triage, err := s.Stores.Triage.Read()
	if err != nil {
		return Assignment{}, false, err
	}
	backlogTasks, err := s.Stores.Backlog.Read()
	if err != nil {
		return Assignment{}, false, err
	}

	type candidate struct {
		text   string
		source pipeline.TaskSource
	}
	ordered := make([]candidate, 0, len(triage)+len(backlogTasks))
	for _, t := range triage {
		ordered = append(ordered, candidate{t, pipeline.SourceTriage})
	}
	for _, t := range backlogTasks {
		ordered = append(ordered, candidate{t, pipeline.SourceBacklog})
	}

	now := time.Now()
	var deferred *candidate
	for i, c := range ordered {
		key := taskKey(c.source, c.text)
		if _, inFlight := s.tasksInFlight[key]; inFlight {
			continue
		}
		if pipeline.IsMainNotGreenSentinel(c.text) && now.Before(s.mainNotGreenRetryAfter) {
			if deferred == nil {
				deferred = &ordered[i]
			}
			continue
		}
		return s.claim(c.source, c.text), true, nil
	}
	if deferred != nil {
		return s.claim(deferred.source, deferred.text), true, nil
	}
	return Assignment{}, false, nil
}

func (s *Scheduler) claim(source pipeline.TaskSource, text string) Assignment {
	key := taskKey(source, text)
	s.tasksInFlight[key] = struct{}{}
	return Assignment{Text: text, Source: source, Key: key}
}

// Release frees key so a future Acquire can return the same task again.
// Called in all routing outcomes per spec.md §4.7.5, whether the task was
// actually removed from its file (success) or left for a future attempt
// (failure).
func (s *Scheduler) Release(key string) {
	delete(s.tasksInFlight, key)
}

// DeferMainNotGreen sets the cooldown window after a no-op main-not-green
// cycle, per spec.md §4.7.5.
func (s *Scheduler) DeferMainNotGreen(cooldown time.Duration) {
	s.mainNotGreenRetryAfter = time.Now().Add(cooldown)
}

// InFlightCount reports how many tasks are currently claimed.
func (s *Scheduler) InFlightCount() int {
	return len(s.tasksInFlight)
}
