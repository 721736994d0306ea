package domain

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// TaskCount is the number of fixed daily tasks.
const TaskCount = 7

// FixedTask is one entry of the immutable task catalog. The catalog is
// defined once at process start and is identical across all days.
type FixedTask struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DefaultCatalog returns the built-in task catalog used when no override is
// configured.
func DefaultCatalog() []FixedTask {
	return []FixedTask{
		{ID: 1, Name: "Wake up early"},
		{ID: 2, Name: "Exercise"},
		{ID: 3, Name: "Read"},
		{ID: 4, Name: "Eat healthy"},
		{ID: 5, Name: "Journal"},
		{ID: 6, Name: "Learn something new"},
		{ID: 7, Name: "Sleep on time"},
	}
}

// ParseCatalog decodes a configured catalog and validates it: exactly
// TaskCount entries, ids 1..TaskCount each present once, non-empty names.
func ParseCatalog(data []byte) ([]FixedTask, error) {
	var catalog []FixedTask
	if err := sonic.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode task catalog: %w", err)
	}
	if len(catalog) != TaskCount {
		return nil, fmt.Errorf("task catalog must have exactly %d entries, got %d", TaskCount, len(catalog))
	}
	seen := make(map[int]bool, TaskCount)
	for _, t := range catalog {
		if t.ID < 1 || t.ID > TaskCount {
			return nil, fmt.Errorf("task id %d out of range 1..%d", t.ID, TaskCount)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate task id %d", t.ID)
		}
		if t.Name == "" {
			return nil, fmt.Errorf("task %d has an empty name", t.ID)
		}
		seen[t.ID] = true
	}
	return catalog, nil
}
