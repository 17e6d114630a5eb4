package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/verivote/dreip-backend/auth"
	"github.com/verivote/dreip-backend/log"
)

// DisabledLogging is a global flag to disable the logging middleware.
var DisabledLogging = false

// jsonRegex matches common JSON starting patterns.
var jsonRegex = regexp.MustCompile(`^\s*[\[{]`)

// session is the authenticated caller attached to the request context.
type session struct {
	UserID primitive.ObjectID
	Rights auth.Rights
}

type sessionCtxKey struct{}

// sessionFrom returns the session attached to the request, if any.
func sessionFrom(r *http.Request) *session {
	s, _ := r.Context().Value(sessionCtxKey{}).(*session)
	return s
}

// decodeSession reads and validates the session cookie. It returns nil if no
// cookie is present or the token is invalid or expired.
func (a *API) decodeSession(r *http.Request) *session {
	cookie, err := r.Cookie(auth.AuthTokenCookie)
	if err != nil {
		return nil
	}
	claims, err := a.tokens.DecodeSession(cookie.Value)
	if err != nil {
		log.Debugw("invalid session token", "error", err.Error())
		return nil
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil
	}
	return &session{UserID: userID, Rights: claims.Rights}
}

// requireRights wraps a handler with session authentication: the session
// cookie must decode, carry the wanted rights, and reference a user that
// still exists. Any failure yields 401.
func (a *API) requireRights(rights auth.Rights, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := a.decodeSession(r)
		if s == nil || s.Rights != rights {
			ErrUnauthorized.Write(w)
			return
		}
		var err error
		switch rights {
		case auth.RightsVoter:
			_, err = a.store.Voter(r.Context(), s.UserID)
		case auth.RightsAdmin:
			_, err = a.store.AdminByID(r.Context(), s.UserID)
		}
		if err != nil {
			ErrUnauthorized.Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey{}, s)
		next(w, r.WithContext(ctx))
	}
}

// requireVoter wraps a handler that needs a voter session.
func (a *API) requireVoter(next http.HandlerFunc) http.HandlerFunc {
	return a.requireRights(auth.RightsVoter, next)
}

// requireAdmin wraps a handler that needs an admin session.
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireRights(auth.RightsAdmin, next)
}

// isAdmin reports whether the request carries a valid admin session. Used by
// the public-or-admin read paths.
func (a *API) isAdmin(r *http.Request) bool {
	s := a.decodeSession(r)
	if s == nil || s.Rights != auth.RightsAdmin {
		return false
	}
	_, err := a.store.AdminByID(r.Context(), s.UserID)
	return err == nil
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// loggingMiddleware tags every request with an opaque ID and provides
// request/response logging for debugging. Internal errors are reported to
// clients without detail; the request ID ties the opaque response to the
// server logs.
func loggingMiddleware(maxBodyLog int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Set("X-Request-Id", requestID)

			if DisabledLogging || log.Level() != log.LogLevelDebug {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			var bodyStr string
			if r.Body != nil && r.ContentLength > 0 {
				bodyBytes, err := io.ReadAll(r.Body)
				if err != nil {
					log.Error(err)
					http.Error(w, "unable to read request body", http.StatusInternalServerError)
					return
				}
				// Restore body for the handler.
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

				if jsonRegex.Match(bodyBytes) {
					bodyStr = string(bodyBytes)
					if len(bodyStr) > maxBodyLog {
						bodyStr = bodyStr[:maxBodyLog] + "..."
					}
					bodyStr = strings.ReplaceAll(bodyStr, "\"", "")
				}
			}

			wrapped := &responseWriter{ResponseWriter: w}

			log.Debugw("api request",
				"requestId", requestID,
				"method", r.Method,
				"url", r.URL.String(),
				"body", bodyStr,
			)

			next.ServeHTTP(wrapped, r)

			log.Debugw("api response",
				"requestId", requestID,
				"method", r.Method,
				"url", r.URL.String(),
				"status", wrapped.statusCode,
				"took", time.Since(start).String(),
			)
		})
	}
}
