// Package quota enforces per-tier cleaning limits.
//
// A Gate admits a request only when the caller's file fits the tier's size
// limit and a cleaning slot is available in the current period. Admission
// reserves the slot with a single atomic increment-and-check on the Counter,
// so concurrent requests for the same identity can never both take the last
// slot. The returned Ticket is committed once a report exists, or released
// to give the slot back when the request is abandoned.
//
// Periods are calendar months in UTC. A stored count from an earlier period
// counts as zero; no background reset is needed.
package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrQuotaExceeded is returned when the identity has no cleanings left
	// this period.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrFileTooLarge is returned when the upload exceeds the tier's limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnknownTier is returned for a tier with no policy.
	ErrUnknownTier = errors.New("unknown tier")
)

// Tier is a named service level.
type Tier string

const (
	TierAnonymous  Tier = "anonymous"
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Tiers lists the known tiers from least to most permissive.
var Tiers = []Tier{TierAnonymous, TierFree, TierPro, TierEnterprise}

// ParseTier converts a case-insensitive tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Unlimited is the CleaningsPerPeriod value for tiers without a cap.
const Unlimited = -1

// QuotaExceededError carries the limit that was hit.
type QuotaExceededError struct {
	Tier      Tier
	Limit     int
	PeriodEnd time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s tier allows %d cleaning(s) per month (resets %s)",
		e.Tier, e.Limit, e.PeriodEnd.Format("2006-01-02"))
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// FileTooLargeError carries the size limit that was hit.
type FileTooLargeError struct {
	Tier  Tier
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes exceeds the %s tier limit of %d bytes", e.Size, e.Tier, e.Limit)
}

func (e *FileTooLargeError) Is(target error) bool { return target == ErrFileTooLarge }

// PeriodStart returns the start of the accounting period containing t:
// midnight UTC on the first of the month.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd returns the start of the period after the one containing t.
func PeriodEnd(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}
