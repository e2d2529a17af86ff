package redline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation identifies the kind of change an Edit describes.
type Operation string

const (
	// OpInsert adds new text immediately after the anchor given in Target.
	OpInsert Operation = "INSERT"
	// OpDelete removes the exact text given in Target.
	OpDelete Operation = "DELETE"
	// OpModify replaces the exact text given in Target with NewText.
	OpModify Operation = "MODIFY"
)

// Edit is a single semantic change to apply to a document.
//
// For INSERT, Target is the text immediately preceding the insertion point.
// For DELETE and MODIFY, Target is the exact text to change. Occurrence
// selects the 0-based nth literal match of Target in the document's flat
// text when the same string appears more than once.
type Edit struct {
	Operation  Operation `json:"operation"`
	Target     string    `json:"target"`
	NewText    string    `json:"new_text,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Occurrence int       `json:"occurrence,omitempty"`
}

// Validate checks that the edit is structurally usable before resolution.
func (e Edit) Validate() error {
	switch e.Operation {
	case OpInsert, OpDelete, OpModify:
	default:
		return fmt.Errorf("unknown operation %q", e.Operation)
	}
	if (e.Operation == OpInsert || e.Operation == OpModify) && e.NewText == "" {
		return fmt.Errorf("%s requires new_text", e.Operation)
	}
	if e.Occurrence < 0 {
		return fmt.Errorf("occurrence must be non-negative, got %d", e.Occurrence)
	}
	return nil
}

// ParseEdits decodes a JSON array of edits. Field aliases used by earlier
// producers ("original" for target, "replace" for new_text) are accepted,
// and the operation is inferred from the populated fields when absent.
func ParseEdits(data []byte) ([]Edit, error) {
	var raw []struct {
		Operation  string `json:"operation"`
		Target     string `json:"target"`
		TargetText string `json:"target_text"`
		Original   string `json:"original"`
		NewText    string `json:"new_text"`
		Replace    string `json:"replace"`
		Comment    string `json:"comment"`
		Occurrence int    `json:"occurrence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse edits: %w", err)
	}

	edits := make([]Edit, 0, len(raw))
	for _, item := range raw {
		target := item.Target
		if target == "" {
			target = item.TargetText
		}
		if target == "" {
			target = item.Original
		}
		newText := item.NewText
		if newText == "" {
			newText = item.Replace
		}

		op := Operation(strings.ToUpper(item.Operation))
		if item.Operation == "" {
			switch {
			case target != "" && newText != "":
				op = OpModify
			case target != "" && newText == "":
				op = OpDelete
			case target == "" && newText != "":
				op = OpInsert
			default:
				continue
			}
		}

		edits = append(edits, Edit{
			Operation:  op,
			Target:     target,
			NewText:    newText,
			Comment:    item.Comment,
			Occurrence: item.Occurrence,
		})
	}
	return edits, nil
}

// SkipReason records why a single edit was not applied.
type SkipReason struct {
	Index  int       `json:"index"`
	Edit   Operation `json:"operation"`
	Target string    `json:"target"`
	Reason string    `json:"reason"`
}

// Report summarizes the outcome of one ApplyEdits job.
type Report struct {
	JobID    string       `json:"job_id"`
	Resolved int          `json:"resolved"`
	Applied  int          `json:"applied"`
	Skipped  int          `json:"skipped"`
	Skips    []SkipReason `json:"skips,omitempty"`
}
