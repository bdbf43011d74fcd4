package task

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxWait rejects wait times that would overflow a time.Duration.
const maxWait = float64(math.MaxInt64 / int64(time.Second))

// LoadFile reads and validates a CSV task list.
func LoadFile(path string) (*List, error) {
	f, err := os.Open(path) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, fmt.Errorf("opening task list: %w", err)
	}
	defer f.Close()

	list, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("task list %s: %w", path, err)
	}
	return list, nil
}

// Load reads a CSV task list with a header row and validates every row
// before returning. Nothing partial is ever returned.
//
// Column order is free and extra columns are ignored. Blank lines are
// skipped. An empty param or payload is allowed; an empty wait_time is 0.
func Load(r io.Reader) (*List, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Row: -1, Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var rows [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &SchemaError{Row: len(rows), Reason: perr.Err.Error()}
			}
			return nil, fmt.Errorf("reading row %d: %w", len(rows), err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}

	list, err := FromRows(header, rows)
	if err != nil {
		return nil, err
	}
	for i := range list.tasks {
		list.tasks[i].SourceNo = lines[i]
	}
	return list, nil
}

// FromRows validates a header and data rows and builds a List.
func FromRows(header []string, rows [][]string) (*List, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[name]; dup && name != "" {
			return nil, &SchemaError{Row: -1, Column: name, Reason: fmt.Sprintf("duplicate column %q", name)}
		}
		index[name] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, &SchemaError{Row: -1, Column: col, Reason: fmt.Sprintf("missing column %q", col)}
		}
	}

	field := func(rec []string, col string) string {
		i := index[col]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	seen := make(map[string]int, len(rows))
	tasks := make([]Task, 0, len(rows))
	for rowIdx, rec := range rows {
		t := Task{
			ID:      strings.TrimSpace(field(rec, ColumnTaskID)),
			Target:  strings.TrimSpace(field(rec, ColumnTarget)),
			Action:  strings.ToLower(strings.TrimSpace(field(rec, ColumnAction))),
			Param:   strings.TrimSpace(field(rec, ColumnParam)),
			Payload: strings.TrimSpace(field(rec, ColumnPayload)),
		}

		if t.ID == "" {
			return nil, &SchemaError{Row: rowIdx, Column: ColumnTaskID, Reason: "empty task_id"}
		}
		if first, dup := seen[t.ID]; dup {
			return nil, &SchemaError{
				Row:    rowIdx,
				Column: ColumnTaskID,
				Reason: fmt.Sprintf("task_id %q already used by row %d", t.ID, first),
			}
		}
		seen[t.ID] = rowIdx

		wait, err := parseWait(field(rec, ColumnWaitTime))
		if err != nil {
			return nil, &SchemaError{Row: rowIdx, Column: ColumnWaitTime, Reason: err.Error()}
		}
		t.Wait = wait

		if t.Target == "" {
			return nil, &SchemaError{Row: rowIdx, Column: ColumnTarget, Reason: "empty target"}
		}
		if t.Action == "" {
			return nil, &SchemaError{Row: rowIdx, Column: ColumnAction, Reason: "empty action"}
		}

		tasks = append(tasks, t)
	}

	return &List{tasks: tasks}, nil
}

// parseWait parses a non-negative number of seconds.
func parseWait(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("wait_time %q is not a number", s)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, fmt.Errorf("wait_time %q must be a non-negative number", s)
	}
	if secs > maxWait {
		return 0, fmt.Errorf("wait_time %q is too large", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
