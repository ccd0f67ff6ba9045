package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/actions"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/invite"
)

const maxBodyBytes = 64 << 10

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, dataEnvelope{Data: data})
}

// list renders a nil slice as an empty JSON array.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	body := errorEnvelope{Error: err.Error()}

	var verr *actions.ValidationError
	if errors.As(err, &verr) {
		body.Error = verr.Message
		body.Field = verr.Field
	}

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	}

	writeJSON(w, status, body)
}

// statusFor maps an error class to its HTTP status.
func statusFor(err error) int {
	var verr *actions.ValidationError
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrOnboardingRequired):
		return http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, invite.ErrLineIdentityRequired),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, actions.ErrNotFound), errors.Is(err, invite.ErrInvalidCode):
		return http.StatusNotFound
	case errors.Is(err, invite.ErrExpired), errors.Is(err, invite.ErrExhausted):
		return http.StatusGone
	case errors.Is(err, invite.ErrConcurrentConflict),
		errors.Is(err, actions.ErrConflict),
		errors.Is(err, invite.ErrAlreadyMember),
		errors.Is(err, invite.ErrAlreadyLinked),
		errors.Is(err, actions.ErrOwnerRoleProtected),
		errors.Is(err, actions.ErrLastOwner),
		errors.Is(err, actions.ErrCannotSuspendSelf):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("malformed request")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, err)
	}
	return nil
}
