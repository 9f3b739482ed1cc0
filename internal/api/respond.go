package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/views"
)

const msgInternal = "Something went wrong. Please try again."

type errorResponse struct {
	Message string `json:"message"`
}

// statusFor maps an error onto the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrCategoryNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrTypeMismatch), errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrPartialNotFound),
		errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func jsonEntry(status int, v any) (views.Entry, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return views.Entry{}, err
	}
	return views.Entry{Status: status, ContentType: "application/json", Body: body}, nil
}

func writeEntry(w http.ResponseWriter, e views.Entry) {
	w.Header().Set("Content-Type", e.ContentType)
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	entry, err := jsonEntry(status, v)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	writeEntry(w, entry)
}

// writeError reports err with a user safe message. Unexpected errors are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := common.UserMessage(err, msgInternal)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else if msg == msgInternal {
		msg = http.StatusText(status)
		switch {
		case errors.Is(err, common.ErrUnauthorized):
			msg = ledger.MsgUnauthorized
		case errors.Is(err, common.ErrUserNotFound):
			msg = ledger.MsgUserNotFound
		}
	}
	writeJSON(w, r, status, errorResponse{Message: msg})
}

// writeResult reports a mutation outcome. successStatus is used when it
// succeeded.
func writeResult(w http.ResponseWriter, r *http.Request, res ledger.Result, successStatus int) {
	status := successStatus
	if !res.Success {
		status = statusFor(res.Err)
	}
	writeJSON(w, r, status, res)
}
