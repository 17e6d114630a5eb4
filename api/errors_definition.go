//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401, 403, 404 or 422, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap, DON'T fill it in, that code belonged to a removed error and shouldn't be reused.
var (
	ErrResourceNotFound     = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody        = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam       = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrNotEligible          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voter does not exist or cannot vote on this question")}
	ErrMalformedElection    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed election spec")}
	ErrElectionNotEnded     = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election has not ended yet")}
	ErrUnauthorized         = Error{Code: 40101, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("unauthorized")}
	ErrIncorrectCredentials = Error{Code: 40102, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("incorrect username and password combination")}
	ErrIncorrectOtp         = Error{Code: 40103, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("incorrect OTP code")}
	ErrCaptchaFailed        = Error{Code: 40104, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("captcha verification failed")}
	ErrForbidden            = Error{Code: 40301, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("forbidden")}
	ErrAlreadyJoined        = Error{Code: 40302, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("voter has already joined this election")}
	ErrMutexElectorate      = Error{Code: 42201, HTTPstatus: http.StatusUnprocessableEntity, Err: fmt.Errorf("cannot join more than one group of a mutex electorate")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
