package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as the user-facing message from pipeline.MapError.

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/micareg/internal/logging"
	"github.com/JonMunkholm/micareg/internal/pipeline"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), pipeline.MapError(err).Code == "FILE004":
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrUnknownRegister):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrEmptyFile), errors.Is(err, pipeline.ErrUnreadableFile), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := pipeline.MapError(err)
	if errors.Is(err, errNoFile) {
		msg = pipeline.UserMessage{
			Message: "No file was uploaded",
			Action:  "Send the CSV as the multipart field \"file\" or as the request body",
			Code:    "FILE006",
		}
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, r, status, ErrorResponse{
		Error:     msg.Message,
		Message:   msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: chimw.GetReqID(r.Context()),
	})
}
