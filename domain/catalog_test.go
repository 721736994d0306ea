package domain

import "testing"

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog) != TaskCount {
		t.Fatalf("expected %d tasks, got %d", TaskCount, len(catalog))
	}
	for i, task := range catalog {
		if task.ID != i+1 {
			t.Fatalf("expected sequential ids, got %d at position %d", task.ID, i)
		}
		if task.Name == "" {
			t.Fatalf("task %d has no name", task.ID)
		}
	}
}

func TestParseCatalog(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid",
			payload: `[{"id":1,"name":"a"},{"id":2,"name":"b"},{"id":3,"name":"c"},{"id":4,"name":"d"},{"id":5,"name":"e"},{"id":6,"name":"f"},{"id":7,"name":"g"}]`,
		},
		{
			name:    "too few entries",
			payload: `[{"id":1,"name":"a"}]`,
			wantErr: true,
		},
		{
			name:    "duplicate id",
			payload: `[{"id":1,"name":"a"},{"id":1,"name":"b"},{"id":3,"name":"c"},{"id":4,"name":"d"},{"id":5,"name":"e"},{"id":6,"name":"f"},{"id":7,"name":"g"}]`,
			wantErr: true,
		},
		{
			name:    "id out of range",
			payload: `[{"id":0,"name":"a"},{"id":2,"name":"b"},{"id":3,"name":"c"},{"id":4,"name":"d"},{"id":5,"name":"e"},{"id":6,"name":"f"},{"id":7,"name":"g"}]`,
			wantErr: true,
		},
		{
			name:    "empty name",
			payload: `[{"id":1,"name":""},{"id":2,"name":"b"},{"id":3,"name":"c"},{"id":4,"name":"d"},{"id":5,"name":"e"},{"id":6,"name":"f"},{"id":7,"name":"g"}]`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `{`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := ParseCatalog([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got catalog %+v", catalog)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse catalog: %v", err)
			}
			if len(catalog) != TaskCount {
				t.Fatalf("expected %d entries, got %d", TaskCount, len(catalog))
			}
		})
	}
}
