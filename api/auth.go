package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/verivote/dreip-backend/auth"
	"github.com/verivote/dreip-backend/log"
)

// credentials is the admin login request body.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// adminAuthenticate logs an admin in and sets the session cookie.
// POST /admins/authenticate
func (a *API) adminAuthenticate(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	// An unknown username and a wrong password are indistinguishable, so
	// account existence cannot be probed.
	admin, err := a.store.AdminByUsername(r.Context(), creds.Username)
	if err != nil || !auth.VerifyPassword(admin.PasswordHash, creds.Password) {
		ErrIncorrectCredentials.Write(w)
		return
	}

	token, err := a.tokens.NewSession(admin.ID.Hex(), auth.RightsAdmin)
	if err != nil {
		log.Errorw(err, "failed to issue admin session")
		ErrGenericInternalServerError.Write(w)
		return
	}
	http.SetCookie(w, auth.NewCookie(auth.AuthTokenCookie, token, a.tokens.AuthTTL))
	log.Infow("admin authenticated", "username", creds.Username)
	httpWriteOK(w)
}

// createAdmin creates another administrator account.
// POST /admins
func (a *API) createAdmin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if creds.Username == "" || creds.Password == "" {
		ErrMalformedBody.With("username and password must not be empty").Write(w)
		return
	}
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		log.Errorw(err, "failed to hash admin password")
		ErrGenericInternalServerError.Write(w)
		return
	}
	if err := a.store.CreateAdmin(r.Context(), creds.Username, hash); err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteJSONStatus(w, http.StatusCreated, map[string]string{"username": creds.Username})
}

// voterChallenge issues an OTP challenge cookie and delivers the code by SMS.
// GET /voter/challenge?sms=E164&captcha=token
func (a *API) voterChallenge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	ok, err := a.captcha.Verify(r.Context(), query.Get("captcha"), remoteIP(r))
	if err != nil {
		log.Errorw(err, "captcha verification errored")
		ErrGenericInternalServerError.Write(w)
		return
	}
	if !ok {
		ErrCaptchaFailed.Write(w)
		return
	}

	sms, err := auth.ParseSms(query.Get("sms"))
	if err != nil {
		ErrMalformedParam.Withf("sms: %v", err).Write(w)
		return
	}

	token, code, err := a.tokens.NewChallenge(sms)
	if err != nil {
		log.Errorw(err, "failed to issue challenge")
		ErrGenericInternalServerError.Write(w)
		return
	}
	text := fmt.Sprintf("Your voting verification code is %s", code)
	if err := a.sms.Send(r.Context(), sms.String(), text); err != nil {
		log.Errorw(err, "failed to send otp sms")
		ErrGenericInternalServerError.Write(w)
		return
	}

	http.SetCookie(w, auth.NewCookie(auth.ChallengeCookie, token, a.tokens.OtpTTL))
	httpWriteOK(w)
}

// voterVerify checks the submitted OTP code against the challenge cookie and,
// on match, creates the voter if needed and sets the session cookie.
// POST /voter/verify
func (a *API) voterVerify(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.ChallengeCookie)
	if err != nil {
		ErrUnauthorized.With("missing challenge cookie").Write(w)
		return
	}
	sms, expected, err := a.tokens.DecodeChallenge(cookie.Value)
	if err != nil {
		ErrUnauthorized.With("invalid or expired challenge").Write(w)
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	code, err := auth.ParseCode(body.Code)
	if err != nil {
		ErrMalformedParam.Withf("code: %v", err).Write(w)
		return
	}
	if !code.Equal(expected) {
		ErrIncorrectOtp.Write(w)
		return
	}

	voter, err := a.store.UpsertVoter(r.Context(), sms.HMAC(a.hmacSecret))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	token, err := a.tokens.NewSession(voter.ID.Hex(), auth.RightsVoter)
	if err != nil {
		log.Errorw(err, "failed to issue voter session")
		ErrGenericInternalServerError.Write(w)
		return
	}
	http.SetCookie(w, auth.NewCookie(auth.AuthTokenCookie, token, a.tokens.AuthTTL))
	// The challenge is spent.
	http.SetCookie(w, auth.ClearCookie(auth.ChallengeCookie))
	httpWriteOK(w)
}

// logout clears the session and any pending challenge.
// DELETE /auth
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearCookie(auth.AuthTokenCookie))
	http.SetCookie(w, auth.ClearCookie(auth.ChallengeCookie))
	httpWriteOK(w)
}
