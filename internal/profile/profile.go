// Package profile inspects a dataset and produces an immutable Snapshot:
// per-column profiles, a quality score in [0,100], and the list of issues
// that explain the score.
//
// Profiling is a pure function of the dataset's current contents. It never
// fails: unparseable cells are counted as defects.
//
// # Scoring
//
// The score starts at 100 and subtracts one capped penalty per defect
// category. Each penalty is its ratio times its weight, so no category can
// remove more than its weight and the total never drops below zero:
//
//	missing cells        null cells / all cells                 x 40
//	duplicate rows       repeated rows / rows                   x 30
//	type inconsistency   conflicting cells / non-null cells     x 20
//	malformed semantics  invalid cells / cells in typed columns x 10
//
// A dataset with no rows scores 0.
package profile

import (
	"fmt"
	"math"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// Penalty weights. They sum to 100.
const (
	WeightMissing    = 40.0
	WeightDuplicates = 30.0
	WeightTypes      = 20.0
	WeightSemantic   = 10.0
)

// Detection and reporting thresholds.
const (
	// SemanticConfidence is the share of non-null values that must match a
	// semantic kind before the column is classified (and standardized).
	SemanticConfidence = 0.8

	// AmbiguousConfidence is the lowest match share reported as an
	// ambiguous column rather than ignored.
	AmbiguousConfidence = 0.5

	// ColumnMissingThreshold flags columns with more missing values than this share.
	ColumnMissingThreshold = 0.5

	// RowMissingThreshold flags non-empty rows with more missing values than this share.
	RowMissingThreshold = 0.2
)

// ColumnProfile is derived data for one column at one point in time.
type ColumnProfile struct {
	Name          string
	Type          dataset.Kind // dominant storage kind of non-null cells
	NonNull       int
	NullRatio     float64
	DistinctRatio float64 // distinct non-null values / non-null values

	// Semantic is set only when Confidence >= SemanticConfidence.
	Semantic   dataset.Semantic
	Confidence float64

	// Candidate is the best-matching kind when the column is ambiguous.
	Candidate dataset.Semantic
	Ambiguous bool

	Malformed    int  // non-null cells invalid for Semantic
	Inconsistent int  // non-null cells whose inferred type conflicts with the column
	TypedAsText  bool // numbers or booleans stored as text

	inferred  dataset.Kind
	textTyped int
}

// Confident reports whether the column was classified with a semantic kind
// other than generic.
func (c ColumnProfile) Confident() bool {
	return c.Semantic != "" && c.Semantic != dataset.SemanticGeneric
}

// Penalties holds the score deduction for each defect category.
type Penalties struct {
	Missing    float64
	Duplicates float64
	Types      float64
	Semantic   float64
}

// Total returns the sum of all penalties.
func (p Penalties) Total() float64 {
	return p.Missing + p.Duplicates + p.Types + p.Semantic
}

// Snapshot is the immutable result of one profiling pass.
type Snapshot struct {
	Rows          int
	Columns       []ColumnProfile
	EmptyRows     int
	DuplicateRows int
	SparseRows    int
	NullCells     int
	Penalties     Penalties
	Score         float64
	Issues        []string
}

// Column returns the profile of the named column.
func (s Snapshot) Column(name string) (ColumnProfile, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// SemanticColumns returns the confidently classified columns in column order.
func (s Snapshot) SemanticColumns() []ColumnProfile {
	var out []ColumnProfile
	for _, c := range s.Columns {
		if c.Confident() {
			out = append(out, c)
		}
	}
	return out
}

// ColumnAnalysis maps every column to its semantic kind ("generic" when unclassified).
func (s Snapshot) ColumnAnalysis() map[string]string {
	out := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		kind := dataset.SemanticGeneric
		if c.Confident() {
			kind = c.Semantic
		}
		out[c.Name] = string(kind)
	}
	return out
}

// Profile computes a snapshot of the dataset.
func Profile(ds *dataset.Dataset) Snapshot {
	snap := Snapshot{Rows: ds.Len()}
	numCols := ds.NumColumns()

	seen := make(map[string]bool, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		nulls := 0
		for _, v := range row {
			if v.IsNull() {
				nulls++
			}
		}
		snap.NullCells += nulls

		switch {
		case nulls == numCols:
			snap.EmptyRows++
		case float64(nulls)/float64(numCols) > RowMissingThreshold:
			snap.SparseRows++
		}

		key := row.Key()
		if seen[key] {
			snap.DuplicateRows++
		} else {
			seen[key] = true
		}
	}

	snap.Columns = make([]ColumnProfile, numCols)
	for col, name := range ds.Columns() {
		snap.Columns[col] = profileColumn(name, ds.Column(col))
	}

	snap.Penalties = penalties(snap, numCols)
	snap.Score = score(snap)
	snap.Issues = issues(snap)
	return snap
}

func profileColumn(name string, values []dataset.Value) ColumnProfile {
	p := ColumnProfile{Name: name, Semantic: dataset.SemanticGeneric}

	storage := make(map[dataset.Kind]int)
	inferred := make(map[dataset.Kind]int)
	distinct := make(map[string]bool)
	var nonNull []dataset.Value

	for _, v := range values {
		if v.IsNull() {
			continue
		}
		nonNull = append(nonNull, v)
		storage[v.Kind()]++
		inferred[inferKind(v)]++
		distinct[fmt.Sprintf("%d:%s", v.Kind(), v.String())] = true
	}

	p.NonNull = len(nonNull)
	if len(values) > 0 {
		p.NullRatio = float64(len(values)-p.NonNull) / float64(len(values))
	}
	if p.NonNull == 0 {
		p.Type = dataset.KindNull
		return p
	}
	p.DistinctRatio = float64(len(distinct)) / float64(p.NonNull)
	p.Type = dominant(storage)
	p.inferred = dominant(inferred)

	for _, v := range nonNull {
		k := inferKind(v)
		switch {
		case k != p.inferred:
			p.Inconsistent++
		case v.Kind() == dataset.KindString && (k == dataset.KindNumber || k == dataset.KindBool):
			p.Inconsistent++
			p.textTyped++
			p.TypedAsText = true
		}
	}

	if p.inferred == dataset.KindNumber || p.inferred == dataset.KindBool {
		return p
	}

	best, bestConf := dataset.SemanticGeneric, 0.0
	for _, sem := range dataset.Semantics {
		matches := 0
		for _, v := range nonNull {
			if sem.Matches(v) {
				matches++
			}
		}
		conf := float64(matches) / float64(p.NonNull)
		if conf > bestConf {
			best, bestConf = sem, conf
		}
	}

	p.Confidence = bestConf
	switch {
	case bestConf >= SemanticConfidence:
		p.Semantic = best
		for _, v := range nonNull {
			if !best.Valid(v) {
				p.Malformed++
			}
		}
	case bestConf >= AmbiguousConfidence:
		p.Candidate = best
		p.Ambiguous = true
	}
	return p
}

// inferKind returns the kind a cell would have after lenient parsing.
func inferKind(v dataset.Value) dataset.Kind {
	if v.Kind() != dataset.KindString {
		return v.Kind()
	}
	if _, ok := dataset.ParseNumber(v.Str()); ok {
		return dataset.KindNumber
	}
	if _, ok := dataset.ParseBool(v.Str()); ok {
		return dataset.KindBool
	}
	return dataset.KindString
}

// dominant returns the most frequent kind, preferring the lower Kind on ties
// so the result does not depend on map iteration order.
func dominant(counts map[dataset.Kind]int) dataset.Kind {
	best, bestN := dataset.KindNull, -1
	for k := dataset.KindNull; k <= dataset.KindDate; k++ {
		if n := counts[k]; n > bestN {
			best, bestN = k, n
		}
	}
	return best
}

func penalties(s Snapshot, numCols int) Penalties {
	var p Penalties
	if s.Rows == 0 {
		return p
	}

	cells := s.Rows * numCols
	p.Missing = capped(float64(s.NullCells)/float64(cells), WeightMissing)
	p.Duplicates = capped(float64(s.DuplicateRows)/float64(s.Rows), WeightDuplicates)

	nonNull, inconsistent, typed, malformed := 0, 0, 0, 0
	for _, c := range s.Columns {
		nonNull += c.NonNull
		inconsistent += c.Inconsistent
		if c.Confident() {
			typed += c.NonNull
			malformed += c.Malformed
		}
	}
	if nonNull > 0 {
		p.Types = capped(float64(inconsistent)/float64(nonNull), WeightTypes)
	}
	if typed > 0 {
		p.Semantic = capped(float64(malformed)/float64(typed), WeightSemantic)
	}
	return p
}

func capped(ratio, weight float64) float64 {
	return math.Min(math.Max(ratio, 0), 1) * weight
}

func score(s Snapshot) float64 {
	if s.Rows == 0 {
		return 0
	}
	v := 100 - s.Penalties.Total()
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*10) / 10
}

// issues derives report lines from the same counts the penalties use.
func issues(s Snapshot) []string {
	var out []string
	if s.Rows == 0 {
		return append(out, "Dataset has no rows")
	}

	if s.EmptyRows > 0 {
		out = append(out, fmt.Sprintf("%d completely empty rows found", s.EmptyRows))
	}
	if s.DuplicateRows > 0 {
		out = append(out, fmt.Sprintf("%d duplicate rows found", s.DuplicateRows))
	}
	if s.SparseRows > 0 {
		out = append(out, fmt.Sprintf("%d rows with >%.0f%% missing values", s.SparseRows, RowMissingThreshold*100))
	}

	for _, c := range s.Columns {
		if c.NullRatio > ColumnMissingThreshold {
			out = append(out, fmt.Sprintf("Column '%s' has %.1f%% missing values", c.Name, c.NullRatio*100))
		}
		if c.TypedAsText {
			out = append(out, fmt.Sprintf("Column '%s' contains %s data but is stored as text", c.Name, kindNoun(c.inferred)))
		}
		if mixed := c.Inconsistent - c.textTyped; mixed > 0 {
			out = append(out, fmt.Sprintf("Column '%s' has %d value(s) that do not match its %s type", c.Name, mixed, kindNoun(c.inferred)))
		}
		if c.Confident() && c.Malformed > 0 {
			out = append(out, fmt.Sprintf("Column '%s' has %d value(s) that are not valid %s values", c.Name, c.Malformed, c.Semantic))
		}
		if c.Ambiguous {
			out = append(out, fmt.Sprintf("Column '%s' looks like %s data (%.0f%% of values) but is too inconsistent to standardize automatically",
				c.Name, c.Candidate, c.Confidence*100))
		}
	}
	return out
}

func kindNoun(k dataset.Kind) string {
	switch k {
	case dataset.KindNumber:
		return "numeric"
	case dataset.KindBool:
		return "boolean"
	case dataset.KindDate:
		return "date"
	default:
		return "text"
	}
}
