// Package backlog implements Ralph's durable task queues: backlog.md,
// triage.md, and the merge-conflicts archive, plus the reconciliation pass
// that keeps them in sync with what has actually merged to main.
//
// Files are plain text, one non-blank line per task ("- <task>"). All
// writes are whole-file rewrites; these files stay small enough that this
// is simpler and safer than partial edits.
package backlog

import (
	"bufio"
	"os"
	"strings"
)

// Store is a single line-oriented task file at Path.
type Store struct {
	Path string
}

// Read returns the file's tasks in order, skipping blank lines. A missing
// file reads as an empty list, not an error.
func (s *Store) Read() ([]string, error) {
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tasks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tasks = append(tasks, strings.TrimPrefix(line, "- "))
	}
	return tasks, scanner.Err()
}

// Write overwrites the file with tasks, one "- <task>" line each.
func (s *Store) Write(tasks []string) error {
	var b strings.Builder
	for _, t := range tasks {
		if strings.TrimSpace(t) == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	return os.WriteFile(s.Path, []byte(b.String()), 0o644)
}

// Peek returns the first task without removing it, and whether one exists.
func (s *Store) Peek() (string, bool, error) {
	tasks, err := s.Read()
	if err != nil {
		return "", false, err
	}
	if len(tasks) == 0 {
		return "", false, nil
	}
	return tasks[0], true, nil
}

// Pop removes and returns the first task.
func (s *Store) Pop() (string, bool, error) {
	tasks, err := s.Read()
	if err != nil {
		return "", false, err
	}
	if len(tasks) == 0 {
		return "", false, nil
	}
	task := tasks[0]
	if err := s.Write(tasks[1:]); err != nil {
		return "", false, err
	}
	return task, true, nil
}

// RemoveByText deletes every line exactly equal to task, reporting whether
// anything was removed.
func (s *Store) RemoveByText(task string) (bool, error) {
	tasks, err := s.Read()
	if err != nil {
		return false, err
	}
	kept := make([]string, 0, len(tasks))
	removed := false
	for _, t := range tasks {
		if t == task {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return false, nil
	}
	return true, s.Write(kept)
}

// AddIfAbsent appends task unless it (exactly) already appears, used for
// triage entries which must not duplicate.
func (s *Store) AddIfAbsent(task string) error {
	tasks, err := s.Read()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t == task {
			return nil
		}
	}
	return s.Write(append(tasks, task))
}

// RemoveMatching rewrites the file keeping only tasks for which keep
// returns true, reporting how many lines were dropped.
func (s *Store) RemoveMatching(keep func(task string) bool) (removed int, err error) {
	tasks, err := s.Read()
	if err != nil {
		return 0, err
	}
	kept := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			kept = append(kept, t)
			continue
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.Write(kept)
}
