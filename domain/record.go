package domain

import "strings"

// TaskEntry holds the per-day state of a single fixed task.
type TaskEntry struct {
	Completed bool   `json:"completed"`
	Note      string `json:"note"`
}

// DayRecord is the unit of persistence: completion state and notes for one
// calendar date. Date is the store key, canonical form YYYY-MM-DD.
type DayRecord struct {
	Date  string            `json:"date"`
	Tasks map[int]TaskEntry `json:"tasks"`
}

// NewDayRecord synthesizes the default record for a date: every fixed task
// present, incomplete, with an empty note. The default is not persisted
// until an explicit save occurs.
func NewDayRecord(date string) DayRecord {
	tasks := make(map[int]TaskEntry, TaskCount)
	for id := 1; id <= TaskCount; id++ {
		tasks[id] = TaskEntry{}
	}
	return DayRecord{Date: date, Tasks: tasks}
}

// Normalize prepares a record for persistence: notes are trimmed of
// surrounding whitespace, entries outside the fixed id range are dropped and
// missing fixed ids are filled with empty entries.
func (r *DayRecord) Normalize() {
	tasks := make(map[int]TaskEntry, TaskCount)
	for id := 1; id <= TaskCount; id++ {
		entry := r.Tasks[id]
		entry.Note = strings.TrimSpace(entry.Note)
		tasks[id] = entry
	}
	r.Tasks = tasks
}

// Clone returns a deep copy so cached records can be handed out safely.
func (r DayRecord) Clone() DayRecord {
	tasks := make(map[int]TaskEntry, len(r.Tasks))
	for id, entry := range r.Tasks {
		tasks[id] = entry
	}
	return DayRecord{Date: r.Date, Tasks: tasks}
}

// CompletedCount reports how many tasks of the record are done.
func (r DayRecord) CompletedCount() int {
	n := 0
	for _, entry := range r.Tasks {
		if entry.Completed {
			n++
		}
	}
	return n
}
