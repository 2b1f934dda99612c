package backlog

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// genericSuppressionNoise matches backlog lines that are vague
// "clean up eslint-disable" tasks the refill agent tends to emit, which get
// replaced by one canonical task per actually-suppressed rule.
var genericSuppressionNoise = regexp.MustCompile(`(?i)eslint[- ]disable`)

// eslintDisableComment matches `// eslint-disable-next-line rule-a, rule-b`
// and `/* eslint-disable rule-a */` style suppression comments.
var eslintDisableComment = regexp.MustCompile(`eslint-disable(?:-next-line|-line)?\s+([\w\-/,\s]+)`)

var sourceGlobs = []string{"**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx"}

var excludedDirs = []string{"node_modules", "dist", "build", ".git"}

// FindSuppressedRules walks rootDir for JS/TS sources matching sourceGlobs
// and returns the distinct ESLint rule names disabled via inline
// eslint-disable comments. This targets rules actually suppressed in the
// tree rather than every rule named in .eslintrc*/eslint.config.*: a rule
// can be configured without ever being disabled inline, and the refill
// task only matters for the latter.
func FindSuppressedRules(rootDir string) ([]string, error) {
	ruleSet := make(map[string]struct{})

	for _, pattern := range sourceGlobs {
		matches, err := doublestar.Glob(os.DirFS(rootDir), pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, rel := range matches {
			if isExcluded(rel) {
				continue
			}
			rules, err := suppressedRulesInFile(rootDir + string(os.PathSeparator) + rel)
			if err != nil {
				continue
			}
			for _, r := range rules {
				ruleSet[r] = struct{}{}
			}
		}
	}

	rules := make([]string, 0, len(ruleSet))
	for r := range ruleSet {
		rules = append(rules, r)
	}
	sort.Strings(rules)
	return rules, nil
}

func isExcluded(relPath string) bool {
	for _, dir := range excludedDirs {
		if strings.Contains(relPath, dir+"/") || strings.HasPrefix(relPath, dir+"/") {
			return true
		}
	}
	return false
}

func suppressedRulesInFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rules []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := eslintDisableComment.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		for _, rule := range strings.Split(m[1], ",") {
			rule = strings.TrimSpace(rule)
			rule = strings.TrimSuffix(rule, "*/")
			rule = strings.TrimSpace(rule)
			if rule != "" {
				rules = append(rules, rule)
			}
		}
	}
	return rules, scanner.Err()
}

// NormalizeRefill removes generic eslint-suppression-noise tasks from
// backlog and replaces them with one canonical cleanup task per rule
// actually suppressed in rootDir, reporting whether the file changed.
func NormalizeRefill(store *Store, rootDir string) (bool, error) {
	rules, err := FindSuppressedRules(rootDir)
	if err != nil {
		return false, err
	}

	tasks, err := store.Read()
	if err != nil {
		return false, err
	}

	kept := make([]string, 0, len(tasks))
	changed := false
	for _, t := range tasks {
		if genericSuppressionNoise.MatchString(t) {
			changed = true
			continue
		}
		kept = append(kept, t)
	}

	existing := make(map[string]struct{}, len(kept))
	for _, t := range kept {
		existing[norm(t)] = struct{}{}
	}

	for _, rule := range rules {
		task := fmt.Sprintf("Remove unnecessary eslint-disable for %s and fix the underlying issue", rule)
		if _, ok := existing[norm(task)]; ok {
			continue
		}
		kept = append(kept, task)
		changed = true
	}

	if !changed {
		return false, nil
	}
	return true, store.Write(kept)
}
