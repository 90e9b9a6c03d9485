package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/pipeline"
	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/JonMunkholm/csvclean/internal/store"
	"github.com/google/uuid"
)

// Options tunes a Service.
type Options struct {
	MaxConcurrent int           // simultaneous cleanings (default 4)
	MaxWait       time.Duration // wait for a free slot (default 15s)
	Timeout       time.Duration // one cleaning, parse to report (default 2m)
	HistoryLimit  int           // jobs returned by History (default 20)
}

// Service runs quota-gated cleanings. It is safe for concurrent use.
type Service struct {
	gate     *quota.Gate
	pipeline *pipeline.Pipeline
	limiter  *CleaningLimiter
	jobs     store.JobRecorder

	timeout      time.Duration
	historyLimit int
	now          func() time.Time
}

// NewService wires a Service. jobs may be nil, in which case no history
// is kept.
func NewService(gate *quota.Gate, p *pipeline.Pipeline, jobs store.JobRecorder, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Service{
		gate:         gate,
		pipeline:     p,
		limiter:      NewCleaningLimiter(opts.MaxConcurrent, opts.MaxWait),
		jobs:         jobs,
		timeout:      opts.Timeout,
		historyLimit: opts.HistoryLimit,
		now:          time.Now,
	}
}

// CleanRequest is one uploaded file with its optional instruction.
type CleanRequest struct {
	FileName     string
	Size         int64 // declared size; the body is also checked while reading
	Body         io.Reader
	Instructions string
}

// CleanResult is what a successful cleaning returns.
type CleanResult struct {
	JobID  string
	Report pipeline.Report
	Data   *dataset.Dataset
	Usage  UsageInfo
}

// UsageInfo is a caller's quota position plus signup hints for anonymous
// callers.
type UsageInfo struct {
	quota.Usage `yaml:",inline"`

	NeedsSignup      bool `json:"needs_signup" yaml:"needs_signup"`
	ShowSignupPrompt bool `json:"show_signup_prompt" yaml:"show_signup_prompt"`
}

func newUsageInfo(c Caller, u quota.Usage) UsageInfo {
	info := UsageInfo{Usage: u}
	if c.Anonymous && u.Limit != quota.Unlimited {
		info.NeedsSignup = u.Remaining == 0
		info.ShowSignupPrompt = u.Remaining <= 1
	}
	return info
}

// Clean admits, parses, cleans and records one file.
//
// Admission reserves a quota slot before any work. The slot is committed
// only once a report exists; every failure after admission gives it back.
func (s *Service) Clean(ctx context.Context, caller Caller, req CleanRequest) (*CleanResult, error) {
	if req.Body == nil {
		return nil, ErrNoFile
	}
	if req.Size == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmptyFile, dataset.ErrMalformedInput)
	}

	jobID := uuid.New().String()
	log := logging.WithFields(ctx,
		"cleaning_id", jobID,
		"identity_kind", caller.IdentityKind(),
		"tier", caller.Tier,
	)

	ticket, err := s.gate.Admit(ctx, caller.Identity, caller.Tier, req.Size)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Release after the request context may be gone.
		if err := ticket.Release(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to release quota", "error", err)
		}
	}()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	log.Info("cleaning started", "file_size", req.Size)

	body := &sizeGuard{r: req.Body, limit: ticket.Policy().MaxFileBytes(), tier: caller.Tier}
	ds, stats, err := dataset.Read(body)
	if err != nil {
		if body.err != nil {
			return nil, body.err
		}
		return nil, err
	}

	report, cleaned, err := s.pipeline.Clean(ctx, ds, req.Instructions, pipeline.Policy{
		AIAllowed: ticket.Policy().AIAllowed,
	})
	if err != nil {
		return nil, err
	}
	if readIssues := stats.Issues(); len(readIssues) > 0 {
		report.IssuesFound = append(readIssues, report.IssuesFound...)
	}

	ticket.Commit()
	elapsed := s.now().Sub(start)

	log.Info("cleaning completed",
		"original_rows", report.OriginalRows,
		"final_rows", report.FinalRows,
		"score_before", report.ScoreBefore,
		"score_after", report.ScoreAfter,
		"operations", len(report.OperationsPerformed),
		"llm_fallback", report.LLMError != "",
		"duration_ms", elapsed.Milliseconds(),
	)

	s.record(context.WithoutCancel(ctx), log, store.CleaningJob{
		ID:           jobID,
		Identity:     caller.Identity,
		Tier:         caller.Tier,
		FileName:     req.FileName,
		FileSize:     req.Size,
		OriginalRows: report.OriginalRows,
		FinalRows:    report.FinalRows,
		Columns:      report.FinalColumns,
		ScoreBefore:  report.ScoreBefore,
		ScoreAfter:   report.ScoreAfter,
		Operations:   report.OperationsPerformed,
		LLMError:     report.LLMError,
		ProcessingMS: elapsed.Milliseconds(),
		CreatedAt:    start.UTC(),
	})

	return &CleanResult{
		JobID:  jobID,
		Report: report,
		Data:   cleaned,
		Usage:  newUsageInfo(caller, ticket.Usage()),
	}, nil
}

// record stores job history. Failure never fails the cleaning.
func (s *Service) record(ctx context.Context, log *slog.Logger, job store.CleaningJob) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.RecordJob(ctx, job); err != nil {
		log.Warn("failed to record cleaning job", "error", err)
	}
}

// Usage returns the caller's quota position for the current period.
func (s *Service) Usage(ctx context.Context, caller Caller) (UsageInfo, error) {
	u, err := s.gate.Usage(ctx, caller.Identity, caller.Tier)
	if err != nil {
		return UsageInfo{}, err
	}
	return newUsageInfo(caller, u), nil
}

// History returns the caller's most recent cleanings, newest first.
func (s *Service) History(ctx context.Context, caller Caller) ([]store.CleaningJob, error) {
	if s.jobs == nil {
		return []store.CleaningJob{}, nil
	}
	jobs, err := s.jobs.RecentJobs(ctx, caller.Identity, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return jobs, nil
}

// LimiterStatus reports cleaning slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForCleanings blocks until running cleanings finish or ctx ends.
func (s *Service) WaitForCleanings(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// sizeGuard fails the read once more than limit bytes arrive, so a body
// larger than its declared size cannot bypass the tier limit.
type sizeGuard struct {
	r     io.Reader
	limit int64
	read  int64
	tier  quota.Tier
	err   error
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	if g.err != nil {
		return 0, g.err
	}
	n, err := g.r.Read(p)
	g.read += int64(n)
	if g.read > g.limit {
		g.err = &quota.FileTooLargeError{Tier: g.tier, Size: g.read, Limit: g.limit}
		return n, g.err
	}
	return n, err
}
