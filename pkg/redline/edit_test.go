package redline

import (
	"testing"
)

func TestEditValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    Edit
		wantErr bool
	}{
		{
			name: "valid delete",
			edit: Edit{Operation: OpDelete, Target: "text"},
		},
		{
			name: "valid modify",
			edit: Edit{Operation: OpModify, Target: "old", NewText: "new"},
		},
		{
			name: "valid insert",
			edit: Edit{Operation: OpInsert, Target: "anchor", NewText: "new"},
		},
		{
			name:    "unknown operation",
			edit:    Edit{Operation: "REPLACE", Target: "x"},
			wantErr: true,
		},
		{
			name:    "modify without new text",
			edit:    Edit{Operation: OpModify, Target: "old"},
			wantErr: true,
		},
		{
			name:    "insert without new text",
			edit:    Edit{Operation: OpInsert, Target: "anchor"},
			wantErr: true,
		},
		{
			name:    "negative occurrence",
			edit:    Edit{Operation: OpDelete, Target: "x", Occurrence: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.edit.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseEdits(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    []Edit
		wantErr bool
	}{
		{
			name: "canonical schema",
			json: `[{"operation":"MODIFY","target":"30 days","new_text":"sixty days","comment":"why","occurrence":1}]`,
			want: []Edit{
				{Operation: OpModify, Target: "30 days", NewText: "sixty days", Comment: "why", Occurrence: 1},
			},
		},
		{
			name: "alias fields original and replace",
			json: `[{"original":"foo","replace":"bar"}]`,
			want: []Edit{
				{Operation: OpModify, Target: "foo", NewText: "bar"},
			},
		},
		{
			name: "operation inferred from fields",
			json: `[{"target":"gone"},{"target":"anchor","new_text":"added","operation":"INSERT"}]`,
			want: []Edit{
				{Operation: OpDelete, Target: "gone"},
				{Operation: OpInsert, Target: "anchor", NewText: "added"},
			},
		},
		{
			name: "lowercase operation normalized",
			json: `[{"operation":"delete","target":"x"}]`,
			want: []Edit{
				{Operation: OpDelete, Target: "x"},
			},
		},
		{
			name: "entry with no usable fields dropped",
			json: `[{"comment":"nothing here"}]`,
			want: []Edit{},
		},
		{
			name:    "malformed json",
			json:    `{"not":"an array"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEdits([]byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseEdits() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseEdits() returned %d edits, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseEdits()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
