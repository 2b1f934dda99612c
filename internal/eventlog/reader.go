package eventlog

import (
	"bufio"
	"os"

	"github.com/tidwall/gjson"
)

// ForEach scans path line by line, calling fn with each successfully
// decoded event. A missing file is treated as empty, not an error.
// Unparsable lines (partial tears from a concurrent writer, stray
// non-JSON text) are silently skipped, matching spec.md §5's "partial-line
// tears are treated as parse errors and ignored."
func ForEach(path string, fn func(Event)) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
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
		kind := v.Get("event").String()
		if kind == "" {
			continue
		}
		fields := v.Value().(map[string]any)
		fn(Event{Kind: Kind(kind), Raw: line, Fields: fields})
	}
	return scanner.Err()
}

// ReadAll collects every decoded event from path, in file order.
func ReadAll(path string) ([]Event, error) {
	var out []Event
	err := ForEach(path, func(e Event) { out = append(out, e) })
	return out, err
}
