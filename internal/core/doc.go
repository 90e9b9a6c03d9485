// Package core runs cleanings on behalf of callers.
//
// It sits between the transport layer and the cleaning engine and owns the
// request lifecycle. It can be used by the HTTP server, the CLI, or tests
// without modification.
//
// # Lifecycle
//
// [Service.Clean] processes one file:
//
//  1. The quota gate checks the file size and reserves a cleaning slot for
//     the caller's identity in the current month.
//  2. A process-wide [CleaningLimiter] bounds concurrent cleanings.
//  3. The CSV is parsed with BOM skipping and UTF-8 sanitization.
//  4. The pipeline profiles, applies the base rules and any interpreted
//     instruction, and profiles again.
//  5. The reserved slot is committed and the job is recorded.
//
// Any failure between steps 1 and 5 releases the slot, so a caller is
// charged only for cleanings that produced a report.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError].
// Each category has a code for support reference:
//
//   - QUOTA001: monthly limit reached
//   - FILE001-FILE005: file size, format and encoding problems
//   - UPL002-UPL005: busy, cancelled, timed out
//   - RATE001, AUTH001, DB004, ERR000
//
// # Maintenance
//
// [Service.StartPurgeScheduler] periodically deletes usage records from
// periods older than the retention window.
package core
