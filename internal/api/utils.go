package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/susu3304/expensebot/internal/assistant"
	"github.com/susu3304/expensebot/internal/ledger"
	"github.com/susu3304/expensebot/internal/reimburse"
	"github.com/susu3304/expensebot/internal/session"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func generateRandomString(length int) string {
	// base64 encoding increases size by ~4/3, so fewer input bytes suffice
	byteLength := (length*3)/4 + 1

	b := make([]byte, byteLength)
	rand.Read(b)
	encoded := base64.RawURLEncoding.EncodeToString(b)
	if len(encoded) > length {
		return encoded[:length]
	}
	return encoded
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, ledger.ErrExpenseNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, assistant.ErrMissingIdempotencyKey),
		errors.Is(err, assistant.ErrDuplicateKey),
		errors.Is(err, assistant.ErrEmptyBatch),
		errors.Is(err, reimburse.ErrInvalidFormat),
		errors.Is(err, session.ErrInvalidAccount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "component", "api", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
