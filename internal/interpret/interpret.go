// Package interpret turns a free-text cleaning instruction into validated
// transform operations with a single language-model call.
//
// The model's answer is untrusted input. It is parsed into a closed set of
// operation kinds, and every operation is checked against the dataset's
// actual columns before it is returned. Anything else is discarded and
// reported, never executed.
//
// Interpretation never fails a cleaning: when the model is unavailable,
// slow, wrong, or not permitted for the caller's tier, Interpret returns a
// fallback Result and the pipeline continues with the base rule set only.
package interpret

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/csvclean/internal/llm"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/profile"
	"github.com/JonMunkholm/csvclean/internal/transform"
)

var (
	// ErrInterpretationFailed wraps every reason interpretation fell back.
	ErrInterpretationFailed = errors.New("instruction interpretation failed")

	// ErrAINotPermitted means the caller's tier does not include
	// instruction-driven cleaning.
	ErrAINotPermitted = errors.New("ai-assisted cleaning not permitted for tier")

	// ErrNoProvider means no language model is configured.
	ErrNoProvider = errors.New("no language model configured")

	// ErrMalformedResponse means the model's answer was not the expected JSON.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Completer is the text-completion capability the interpreter needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Config bounds the external call.
type Config struct {
	Timeout           time.Duration // per call; defaults to 15s
	MaxTokens         int           // defaults to 512
	MaxInstructionLen int           // longer instructions are truncated; defaults to 2000
	MaxOperations     int           // operations beyond this are discarded; defaults to 20
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	if c.MaxInstructionLen <= 0 {
		c.MaxInstructionLen = 2000
	}
	if c.MaxOperations <= 0 {
		c.MaxOperations = 20
	}
	return c
}

// Interpreter resolves instructions through a Completer. A nil Completer
// is valid: every non-empty instruction then falls back.
type Interpreter struct {
	completer Completer
	cfg       Config
}

// New creates an Interpreter.
func New(completer Completer, cfg Config) *Interpreter {
	return &Interpreter{completer: completer, cfg: cfg.withDefaults()}
}

// Result is the outcome of one interpretation.
type Result struct {
	// Operations are the validated operations in the order the model
	// returned them.
	Operations []transform.Operation

	// Discarded holds one issue line per operation that was dropped.
	Discarded []string

	// Fallback is set when the instruction could not be interpreted;
	// Err then wraps ErrInterpretationFailed.
	Fallback bool
	Err      error
}

// Message returns the user-facing llm_error text, or "" when
// interpretation did not fall back.
func (r Result) Message() string {
	if !r.Fallback {
		return ""
	}
	const suffix = "; only standard cleaning was applied"
	switch {
	case errors.Is(r.Err, ErrAINotPermitted):
		return "Custom instructions are not available on your plan" + suffix
	case errors.Is(r.Err, ErrNoProvider):
		return "Custom instructions are not available right now" + suffix
	case errors.Is(r.Err, context.DeadlineExceeded):
		return "Interpreting your instructions timed out" + suffix
	case errors.Is(r.Err, ErrMalformedResponse):
		return "Your instructions could not be turned into cleaning steps" + suffix
	default:
		return "Your instructions could not be interpreted" + suffix
	}
}

// Interpret resolves the instruction against the snapshot's columns.
//
// An empty instruction yields an empty Result without any external call.
func (i *Interpreter) Interpret(ctx context.Context, instruction string, snap profile.Snapshot, aiAllowed bool) Result {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return Result{}
	}

	logger := logging.FromContext(ctx)

	if !aiAllowed {
		return fallback(ErrAINotPermitted)
	}
	if i.completer == nil {
		return fallback(ErrNoProvider)
	}

	if len(instruction) > i.cfg.MaxInstructionLen {
		instruction = truncate(instruction, i.cfg.MaxInstructionLen)
	}

	callCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := i.completer.Complete(callCtx, llm.Request{
		System:    systemPrompt,
		Prompt:    userPrompt(instruction, snap),
		MaxTokens: i.cfg.MaxTokens,
	})
	if err != nil {
		logger.Warn("instruction interpretation failed, using base rules only",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fallback(err)
	}

	requests, err := parseResponse(raw)
	if err != nil {
		logger.Warn("language model returned an unusable response", "error", err)
		return fallback(err)
	}

	res := validate(requests, snap, i.cfg.MaxOperations)
	logger.Debug("instruction interpreted",
		"operations", len(res.Operations),
		"discarded", len(res.Discarded),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func fallback(cause error) Result {
	return Result{
		Fallback: true,
		Err:      fmt.Errorf("%w: %w", ErrInterpretationFailed, cause),
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
