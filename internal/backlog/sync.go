package backlog

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// legacyMarkers matches the two fixed compatibility markers accepted in
// addition to the configured branch prefix: "harness: improvement #N" and
// "change-NNN".
var legacyMarkers = regexp.MustCompile(`harness:\s*improvement\s*#(\d+)|change-(\d+)`)

// Stores bundles the three task files syncFromLog and moveToMergeConflicts
// operate over.
type Stores struct {
	Backlog       *Store
	Triage        *Store
	MergeConflict *Store
}

// SyncResult reports what reconciliation changed.
type SyncResult struct {
	MergedTasksSeen   int
	RemovedFromBacklog int
	RemovedFromTriage  int
}

// SyncFromLog reconciles backlog.md and triage.md against the event log at
// eventLogPath and main's merge-commit subjects (read via mergeSubjects),
// removing any line equivalent to a task that has already merged.
func SyncFromLog(stores Stores, eventLogPath string, branchPrefix string, mergeSubjects []string) (SyncResult, error) {
	taskByImprovement, mergedFromLog, err := scanEventLog(eventLogPath)
	if err != nil {
		return SyncResult{}, err
	}

	mergedImprovements := make(map[int]struct{}, len(mergedFromLog))
	for n := range mergedFromLog {
		mergedImprovements[n] = struct{}{}
	}
	for _, subject := range mergeSubjects {
		for _, n := range improvementsInSubject(subject, branchPrefix) {
			mergedImprovements[n] = struct{}{}
		}
	}

	mergedKeys := make(map[string]struct{})
	for n := range mergedImprovements {
		task, ok := taskByImprovement[n]
		if !ok {
			continue
		}
		mergedKeys[norm(task)] = struct{}{}
	}

	isMerged := func(task string) bool {
		nt := norm(task)
		if _, ok := mergedKeys[nt]; ok {
			return true
		}
		for key := range mergedKeys {
			if Equivalent(key, nt) {
				return true
			}
		}
		return false
	}

	removedBacklog, err := stores.Backlog.RemoveMatching(func(t string) bool { return !isMerged(t) })
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync backlog: %w", err)
	}
	removedTriage, err := stores.Triage.RemoveMatching(func(t string) bool { return !isMerged(t) })
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync triage: %w", err)
	}

	return SyncResult{
		MergedTasksSeen:    len(mergedImprovements),
		RemovedFromBacklog: removedBacklog,
		RemovedFromTriage:  removedTriage,
	}, nil
}

// scanEventLog reads worker_started and merge_completed{success=true}
// events, tolerating unparsable/non-object lines.
func scanEventLog(path string) (taskByImprovement map[int]string, merged map[int]struct{}, err error) {
	taskByImprovement = make(map[int]string)
	merged = make(map[int]struct{})

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return taskByImprovement, merged, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !gjson.Valid(line) {
			continue
		}
		v := gjson.Parse(line)
		if !v.IsObject() {
			continue
		}
		switch v.Get("event").String() {
		case "worker_started":
			n := int(v.Get("improvement").Int())
			task := v.Get("task").String()
			if n > 0 && task != "" {
				taskByImprovement[n] = task
			}
		case "merge_completed":
			if v.Get("success").Bool() {
				merged[int(v.Get("improvement").Int())] = struct{}{}
			}
		}
	}
	return taskByImprovement, merged, scanner.Err()
}

// improvementsInSubject extracts improvement numbers from a merge commit
// subject, matching the configured branch prefix or either legacy marker.
func improvementsInSubject(subject, branchPrefix string) []int {
	var out []int
	if branchPrefix != "" {
		re := regexp.MustCompile(regexp.QuoteMeta(branchPrefix) + `-(\d+)`)
		for _, m := range re.FindAllStringSubmatch(subject, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil {
				out = append(out, n)
			}
		}
	}
	for _, m := range legacyMarkers.FindAllStringSubmatch(subject, -1) {
		numStr := m[1]
		if numStr == "" {
			numStr = m[2]
		}
		if n, err := strconv.Atoi(numStr); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// MoveToMergeConflicts removes task from backlog, adds a triage entry
// pointing at the conflicted worktree, and appends an idempotent archive
// record to the merge-conflicts file.
func MoveToMergeConflicts(stores Stores, task string, improvement int, branch, worktreePath string) error {
	if _, err := stores.Backlog.RemoveByText(task); err != nil {
		return fmt.Errorf("remove from backlog: %w", err)
	}

	triageEntry := fmt.Sprintf(
		"Resolve merge conflict for improvement #%d (%s) and merge to main. Worktree: %s. Original task: %s",
		improvement, branch, worktreePath, task,
	)
	if err := stores.Triage.AddIfAbsent(triageEntry); err != nil {
		return fmt.Errorf("add triage entry: %w", err)
	}

	marker := fmt.Sprintf("improvement=%d branch=%s", improvement, branch)
	existing, err := stores.MergeConflict.Read()
	if err != nil {
		return fmt.Errorf("read merge-conflicts archive: %w", err)
	}
	for _, line := range existing {
		if strings.Contains(line, marker) {
			return nil
		}
	}

	record := fmt.Sprintf("%s %s worktree=%s. Original task: %s",
		time.Now().UTC().Format(time.RFC3339), marker, worktreePath, task)
	return stores.MergeConflict.Write(append(existing, record))
}
