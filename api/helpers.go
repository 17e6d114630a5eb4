package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/storage"
	"github.com/verivote/dreip-backend/types"
	"github.com/verivote/dreip-backend/voting"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	httpWriteJSONStatus(w, http.StatusOK, data)
}

// httpWriteJSONStatus writes a JSON response with the given status code.
func httpWriteJSONStatus(w http.ResponseWriter, status int, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jdata); err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// urlParamUint32 parses a 32-bit integer URL parameter.
func urlParamUint32(r *http.Request, name string) (uint32, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// electionParam parses the election ID URL parameter.
func electionParam(r *http.Request) (types.ElectionID, error) {
	return urlParamUint32(r, ElectionURLParam)
}

// writeStoreError maps engine and storage errors onto the API error catalog.
// Internal errors never leak store or crypto detail: they are logged and
// surfaced as the opaque catalog entry.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ErrResourceNotFound.WithErr(err).Write(w)
	case errors.Is(err, storage.ErrAlreadyJoined):
		ErrAlreadyJoined.Write(w)
	case errors.Is(err, storage.ErrNotEligible):
		ErrNotEligible.Write(w)
	case errors.Is(err, voting.ErrMutexElectorate):
		ErrMutexElectorate.WithErr(err).Write(w)
	default:
		log.Errorw(err, "internal error")
		ErrGenericInternalServerError.Write(w)
	}
}

// remoteIP extracts the caller's IP without the port.
func remoteIP(r *http.Request) string {
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		return addr[:idx]
	}
	return addr
}
