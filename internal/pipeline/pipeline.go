// Package pipeline orchestrates one cleaning run:
//
//	Admitted -> ProfilingBefore -> Transforming -> ProfilingAfter -> Reported
//
// The run profiles the input, applies the base rule set, applies any
// operations interpreted from the caller's instruction, profiles the result,
// and assembles a Report. The caller's dataset is never modified.
//
// A Pipeline holds no per-run state and may be shared by concurrent runs.
package pipeline

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/interpret"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/profile"
	"github.com/JonMunkholm/csvclean/internal/transform"
)

// State is a stage of a cleaning run.
type State int

const (
	StateAdmitted State = iota
	StateProfilingBefore
	StateTransforming
	StateProfilingAfter
	StateReported
)

func (s State) String() string {
	switch s {
	case StateAdmitted:
		return "admitted"
	case StateProfilingBefore:
		return "profiling_before"
	case StateTransforming:
		return "transforming"
	case StateProfilingAfter:
		return "profiling_after"
	case StateReported:
		return "reported"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Interpreter resolves an instruction into operations.
type Interpreter interface {
	Interpret(ctx context.Context, instruction string, snap profile.Snapshot, aiAllowed bool) interpret.Result
}

// Policy carries the tier permissions that affect a run.
type Policy struct {
	AIAllowed bool
}

// Report is the immutable record of one cleaning run.
type Report struct {
	OriginalRows        int               `json:"original_rows" yaml:"original_rows"`
	FinalRows           int               `json:"final_rows" yaml:"final_rows"`
	RowsRemoved         int               `json:"rows_removed" yaml:"rows_removed"`
	OriginalColumns     int               `json:"original_columns" yaml:"original_columns"`
	FinalColumns        int               `json:"final_columns" yaml:"final_columns"`
	ScoreBefore         float64           `json:"data_quality_score_before" yaml:"data_quality_score_before"`
	ScoreAfter          float64           `json:"data_quality_score_after" yaml:"data_quality_score_after"`
	OperationsPerformed []string          `json:"operations_performed" yaml:"operations_performed"`
	IssuesFound         []string          `json:"issues_found" yaml:"issues_found"`
	ColumnAnalysis      map[string]string `json:"column_analysis" yaml:"column_analysis"`
	LLMError            string            `json:"llm_error,omitempty" yaml:"llm_error,omitempty"`
}

// QualityImprovement returns the score change from before to after.
func (r Report) QualityImprovement() float64 {
	return r.ScoreAfter - r.ScoreBefore
}

// Pipeline runs cleanings.
type Pipeline struct {
	interpreter Interpreter
}

// New creates a Pipeline. A nil interpreter disables instruction handling:
// non-empty instructions are reported as not applied.
func New(interpreter Interpreter) *Pipeline {
	return &Pipeline{interpreter: interpreter}
}

// Clean runs the pipeline over ds. The only error it returns is the
// context's, when the run is abandoned between stages; in that case no
// report is produced.
func (p *Pipeline) Clean(ctx context.Context, ds *dataset.Dataset, instruction string, policy Policy) (Report, *dataset.Dataset, error) {
	logger := logging.FromContext(ctx)
	state := StateAdmitted
	advance := func(next State) error {
		if err := ctx.Err(); err != nil {
			logger.Debug("cleaning abandoned", "state", state, "error", err)
			return fmt.Errorf("cleaning abandoned while %s: %w", state, err)
		}
		logger.Debug("cleaning state", "from", state, "to", next)
		state = next
		return nil
	}

	if err := advance(StateProfilingBefore); err != nil {
		return Report{}, nil, err
	}
	before := profile.Profile(ds)

	if err := advance(StateTransforming); err != nil {
		return Report{}, nil, err
	}
	out, applied := transform.ApplyBase(ds)

	interp := p.interpret(ctx, instruction, profile.Profile(out), policy)
	if len(interp.Operations) > 0 {
		var extra []transform.Applied
		out, extra = transform.Apply(out, interp.Operations)
		applied = append(applied, extra...)
	}

	if err := advance(StateProfilingAfter); err != nil {
		return Report{}, nil, err
	}
	after := profile.Profile(out)

	issues := make([]string, 0, len(before.Issues)+len(interp.Discarded))
	issues = append(issues, before.Issues...)
	issues = append(issues, interp.Discarded...)

	report := Report{
		OriginalRows:        ds.Len(),
		FinalRows:           out.Len(),
		RowsRemoved:         ds.Len() - out.Len(),
		OriginalColumns:     ds.NumColumns(),
		FinalColumns:        out.NumColumns(),
		ScoreBefore:         before.Score,
		ScoreAfter:          after.Score,
		OperationsPerformed: transform.Descriptions(applied),
		IssuesFound:         issues,
		ColumnAnalysis:      before.ColumnAnalysis(),
		LLMError:            interp.Message(),
	}

	if err := advance(StateReported); err != nil {
		return Report{}, nil, err
	}
	return report, out, nil
}

func (p *Pipeline) interpret(ctx context.Context, instruction string, snap profile.Snapshot, policy Policy) interpret.Result {
	if p.interpreter == nil {
		return interpret.New(nil, interpret.Config{}).Interpret(ctx, instruction, snap, policy.AIAllowed)
	}
	return p.interpreter.Interpret(ctx, instruction, snap, policy.AIAllowed)
}
