package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// Codes by category:
//
//	QUOTA001  Monthly cleaning limit reached (sign up or upgrade)
//	FILE001   File exceeds the tier's size limit
//	FILE002   Not a usable CSV
//	FILE003   Encoding problem
//	FILE004   No file in the request
//	FILE005   Empty file
//	UPL002    Too many cleanings running
//	UPL004    Request cancelled
//	UPL005    Request timed out
//	DB004     Usage store unreachable
//	RATE001   Too many requests
//	AUTH001   Unknown plan
//	ERR000    Anything else; check the logs for the technical error
//
// Typed errors are matched with errors.Is first. Errors that only surface
// as text, from drivers or the network, fall back to case-insensitive
// substring patterns where the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/quota"
)

var (
	// ErrNoFile is returned when a request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrEmptyFile is returned for a zero-byte upload.
	ErrEmptyFile = errors.New("empty file")

	// ErrRateLimited is returned when a client exceeds its request rate.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorTarget struct {
	target error
	msg    UserMessage
}

// Order matters: an empty file is also malformed input, so the more
// specific target comes first.
var errorTargets = []errorTarget{
	{quota.ErrQuotaExceeded, UserMessage{
		Message: "You have used all cleanings included in your plan this month",
		Action:  "Sign up or upgrade your plan to keep cleaning",
		Code:    "QUOTA001",
	}},
	{quota.ErrFileTooLarge, UserMessage{
		Message: "File exceeds the size limit for your plan",
		Action:  "Split the file into smaller parts or upgrade your plan",
		Code:    "FILE001",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with a header and data rows",
		Code:    "FILE005",
	}},
	{dataset.ErrMalformedInput, UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with a header row and at least one data row",
		Code:    "FILE002",
	}},
	{ErrNoFile, UserMessage{
		Message: "No file was provided",
		Action:  "Please select a CSV file to clean",
		Code:    "FILE004",
	}},
	{ErrTooManyCleanings, UserMessage{
		Message: "The system is busy with other cleanings",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Cleaning took too long",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}},
	{ErrRateLimited, UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{quota.ErrUnknownTier, UserMessage{
		Message: "Your plan is not recognized",
		Action:  "Contact support to verify your account",
		Code:    "AUTH001",
	}},
}

// errorPattern defines a substring to match and its user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "encoding",
		msg: UserMessage{
			Message: "File contains characters that could not be read",
			Action:  "Save the file as UTF-8 and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Usage information is temporarily unavailable",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Usage information is temporarily unavailable",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Usage information is temporarily unavailable",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
//
//	msg := MapError(fmt.Errorf("admit: %w", quota.ErrQuotaExceeded))
//	// msg.Code == "QUOTA001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			return et.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
