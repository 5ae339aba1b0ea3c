package domain

import (
	"log/slog"
	"sort"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

// DroppedEdit is an edit the applier refused, with the reason.
type DroppedEdit struct {
	Edit   m.Edit
	Reason error
}

// PatchOutcome is the result of applying one set of edits.
type PatchOutcome struct {
	Unit      m.SourceUnit
	Applied   m.PatchSet
	Stale     []DroppedEdit
	Discarded []DroppedEdit
}

// SortEdits orders edits by line descending, then origin priority descending,
// then discovery order.
func SortEdits(edits []m.Edit) []m.Edit {
	sorted := append([]m.Edit(nil), edits...)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Line != b.Line {
			return a.Line > b.Line
		}

		if a.Origin.Priority() != b.Origin.Priority() {
			return a.Origin.Priority() > b.Origin.Priority()
		}

		return a.Order < b.Order
	})

	return sorted
}

// ApplyPatchSet replaces whole lines of unit. Edits are applied bottom-up so no
// edit shifts the line of one applied after it. An edit for another version,
// a missing line or a line whose text changed is stale; a second edit for a
// line already taken is discarded.
func ApplyPatchSet(unit m.SourceUnit, edits []m.Edit) PatchOutcome {
	out := PatchOutcome{
		Unit:    unit,
		Applied: m.PatchSet{Version: unit.Version},
	}

	if len(edits) == 0 {
		return out
	}

	lines := unit.Lines()
	taken := make(map[int]bool, len(edits))

	for _, edit := range SortEdits(edits) {
		if taken[edit.Line] {
			slog.Warn("discarding conflicting edit", "path", unit.Path, "line", edit.Line, "origin", edit.Origin, "fixType", edit.FixType)
			out.Discarded = append(out.Discarded, DroppedEdit{Edit: edit, Reason: ErrEditConflict})

			continue
		}

		if edit.Version != unit.Version || edit.Line < 1 || edit.Line > len(lines) ||
			(edit.OldText != "" && lines[edit.Line-1] != edit.OldText) {
			slog.Debug("dropping stale edit", "path", unit.Path, "line", edit.Line, "version", edit.Version, "current", unit.Version)
			out.Stale = append(out.Stale, DroppedEdit{Edit: edit, Reason: ErrStaleEdit})

			continue
		}

		lines[edit.Line-1] = edit.NewText
		taken[edit.Line] = true
		out.Applied.Edits = append(out.Applied.Edits, edit)
	}

	if out.Applied.Len() > 0 {
		out.Unit = unit.Next(strings.Join(lines, "\n"))
	}

	return out
}
