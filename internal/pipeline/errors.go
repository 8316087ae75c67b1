package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/llm"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// Sentinel errors re-exported for callers that only import pipeline.
var (
	ErrUnknownRegister = schema.ErrUnknownRegister
	ErrUnreadableFile  = csvio.ErrUnreadableFile
	ErrEmptyFile       = csvio.ErrEmptyFile
	ErrNoCredentials   = llm.ErrNoCredentials
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// sentinels are checked with errors.Is before any text pattern.
var sentinels = []struct {
	err error
	msg UserMessage
}{
	{ErrEmptyFile, UserMessage{
		Message: "The file is empty",
		Action:  "Provide a CSV file with a header row and data rows",
		Code:    "FILE005",
	}},
	{ErrUnreadableFile, UserMessage{
		Message: "The file could not be read",
		Action:  "Check the path and that the file is a CSV export",
		Code:    "FILE001",
	}},
	{ErrUnknownRegister, UserMessage{
		Message: "Unknown register",
		Action:  "Use one of: casp, other, art, emt, ncasp",
		Code:    "REG001",
	}},
	{ErrNoCredentials, UserMessage{
		Message: "No model API key is configured",
		Action:  "Set LLM_API_KEY (or DEEPSEEK_API_KEY) and try again",
		Code:    "LLM001",
	}},
	{llm.ErrNoModels, UserMessage{
		Message: "No models are configured",
		Action:  "Set LLM_MODELS to a comma-separated list of model names",
		Code:    "LLM002",
	}},
}

// errorPatterns map technical error text (case-insensitive) to messages.
// The first match wins, so specific patterns come first.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file or raise UPLOAD_MAX_FILE_SIZE",
		Code:    "FILE004",
	}},
	{"too many concurrent", UserMessage{
		Message: "The server is busy processing other uploads",
		Action:  "Wait a few seconds and try again",
		Code:    "RATE001",
	}},
	{"encoding", UserMessage{
		Message: "File contains characters that could not be decoded",
		Action:  "Save the file as UTF-8 and try again",
		Code:    "FILE003",
	}},
	{"chat completion", UserMessage{
		Message: "The model endpoint could not be reached",
		Action:  "Check LLM_ENDPOINT and network access, then try again",
		Code:    "LLM002",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the audit database",
		Action:  "Check DATABASE_URL or run without it",
		Code:    "DB004",
	}},
}

var invalidCSV = UserMessage{
	Message: "File is not a valid CSV",
	Action:  "Ensure the file is comma-separated with consistent quoting",
	Code:    "FILE002",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the underlying error",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. Returns the zero
// value for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return invalidCSV
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
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

// IsUserFacing reports whether err maps to a specific message.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
