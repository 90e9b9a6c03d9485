package transform

import (
	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/profile"
)

// maxBaseRounds bounds the fixed-point loop in ApplyBase. Standardization
// can create new duplicates (two emails differing only in case), which the
// next round removes; in practice the loop settles by the second round.
const maxBaseRounds = 4

// Standardizations returns one standardization per confidently classified
// column of the snapshot, in column order. Ambiguous columns get none.
func Standardizations(snap profile.Snapshot) []Operation {
	var ops []Operation
	for _, c := range snap.SemanticColumns() {
		if op, ok := StandardizeFor(c.Semantic, c.Name); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// ApplyBase applies the base rule set in its fixed order: duplicate rows,
// empty rows, type coercion, then standardization of the columns the
// profiler classifies after structural cleanup. Classified columns are
// exempt from coercion. It repeats until a round changes nothing, so
// applying it to its own output is a no-op.
//
// Outcomes of the same operation across rounds are merged into one entry,
// listed in the order each operation first took effect.
func ApplyBase(ds *dataset.Dataset) (*dataset.Dataset, []Applied) {
	var applied []Applied
	index := make(map[string]int)

	record := func(op Operation, out Outcome) {
		if i, ok := index[op.Key()]; ok {
			prev := applied[i].Outcome
			applied[i].Outcome = Outcome{
				Affected: prev.Affected + out.Affected,
				Failed:   out.Failed,
				Columns:  mergeColumns(prev.Columns, out.Columns),
			}
			return
		}
		index[op.Key()] = len(applied)
		applied = append(applied, Applied{Op: op, Outcome: out})
	}

	for round := 0; round < maxBaseRounds; round++ {
		var effective []Applied
		ds, effective = Apply(ds, []Operation{DropDuplicateRows{}, DropEmptyRows{}})

		// Coercion never changes a classified column, so one profile
		// serves both the skip list and the standardizations.
		snap := profile.Profile(ds)
		std := Standardizations(snap)
		var skip []string
		for _, c := range snap.SemanticColumns() {
			skip = append(skip, c.Name)
		}

		var rest []Applied
		ds, rest = Apply(ds, append([]Operation{CoerceColumnTypes{Skip: skip}}, std...))
		effective = append(effective, rest...)

		if len(effective) == 0 {
			break
		}
		for _, a := range effective {
			record(a.Op, a.Outcome)
		}
	}
	return ds, applied
}
