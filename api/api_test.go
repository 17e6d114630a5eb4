package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/verivote/dreip-backend/auth"
	"github.com/verivote/dreip-backend/captcha"
)

func testTokens() *auth.Tokens {
	return &auth.Tokens{
		Secret:  []byte("test-jwt-secret"),
		OtpTTL:  5 * time.Minute,
		AuthTTL: time.Hour,
	}
}

type recordingSender struct {
	mu    sync.Mutex
	to    []string
	texts []string
}

func (s *recordingSender) Send(_ context.Context, phoneNumber, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, phoneNumber)
	s.texts = append(s.texts, text)
	return nil
}

type denyCaptcha struct{}

func (denyCaptcha) Verify(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestErrorJSON(t *testing.T) {
	c := qt.New(t)
	raw, err := json.Marshal(ErrResourceNotFound)
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Equals, `{"error":"resource not found","code":40001}`)

	withDetail := ErrMalformedParam.Withf("sms: %v", "bad")
	c.Assert(withDetail.Error(), qt.Contains, "malformed parameter")
	c.Assert(withDetail.Error(), qt.Contains, "sms: bad")
	c.Assert(withDetail.Code, qt.Equals, ErrMalformedParam.Code)
}

func TestVoterChallengeIssuesCookieAndSms(t *testing.T) {
	c := qt.New(t)
	sender := &recordingSender{}
	a := &API{
		tokens:  testTokens(),
		sms:     sender,
		captcha: captcha.AllowAllVerifier{},
	}

	req := httptest.NewRequest(http.MethodGet, "/voter/challenge?sms=%2B441234567890", nil)
	rr := httptest.NewRecorder()
	a.voterChallenge(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK)

	// The SMS went to the canonical number and carries a 6-digit code.
	c.Assert(sender.to, qt.DeepEquals, []string{"+441234567890"})
	c.Assert(sender.texts[0], qt.Matches, `.*[0-9]{6}.*`)

	// The challenge cookie decodes to the same code that was sent.
	var challenge *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == auth.ChallengeCookie {
			challenge = cookie
		}
	}
	c.Assert(challenge, qt.IsNotNil)
	c.Assert(challenge.HttpOnly, qt.IsTrue)
	c.Assert(challenge.SameSite, qt.Equals, http.SameSiteStrictMode)
	sms, code, err := a.tokens.DecodeChallenge(challenge.Value)
	c.Assert(err, qt.IsNil)
	c.Assert(sms.String(), qt.Equals, "+441234567890")
	c.Assert(strings.Contains(sender.texts[0], code.String()), qt.IsTrue)
}

func TestVoterChallengeBadNumber(t *testing.T) {
	c := qt.New(t)
	a := &API{
		tokens:  testTokens(),
		sms:     &recordingSender{},
		captcha: captcha.AllowAllVerifier{},
	}
	req := httptest.NewRequest(http.MethodGet, "/voter/challenge?sms=owl-post", nil)
	rr := httptest.NewRecorder()
	a.voterChallenge(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
}

func TestVoterChallengeCaptchaRejected(t *testing.T) {
	c := qt.New(t)
	a := &API{
		tokens:  testTokens(),
		sms:     &recordingSender{},
		captcha: denyCaptcha{},
	}
	req := httptest.NewRequest(http.MethodGet, "/voter/challenge?sms=%2B441234567890", nil)
	rr := httptest.NewRecorder()
	a.voterChallenge(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)
}

func TestVoterVerifyWrongCode(t *testing.T) {
	c := qt.New(t)
	a := &API{
		tokens:  testTokens(),
		sms:     &recordingSender{},
		captcha: captcha.AllowAllVerifier{},
	}
	sms, err := auth.ParseSms("+441234567890")
	c.Assert(err, qt.IsNil)
	token, code, err := a.tokens.NewChallenge(sms)
	c.Assert(err, qt.IsNil)

	// Build a code that is guaranteed wrong.
	wrong := "000000"
	if code.String() == wrong {
		wrong = "000001"
	}
	req := httptest.NewRequest(http.MethodPost, "/voter/verify",
		strings.NewReader(`{"code":"`+wrong+`"}`))
	req.AddCookie(&http.Cookie{Name: auth.ChallengeCookie, Value: token})
	rr := httptest.NewRecorder()
	a.voterVerify(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)
}

func TestVoterVerifyCodeLength(t *testing.T) {
	c := qt.New(t)
	a := &API{
		tokens:  testTokens(),
		sms:     &recordingSender{},
		captcha: captcha.AllowAllVerifier{},
	}
	sms, err := auth.ParseSms("+441234567890")
	c.Assert(err, qt.IsNil)
	token, _, err := a.tokens.NewChallenge(sms)
	c.Assert(err, qt.IsNil)

	// Any length other than 6 digits is a parse error, not a mismatch.
	req := httptest.NewRequest(http.MethodPost, "/voter/verify",
		strings.NewReader(`{"code":"12345"}`))
	req.AddCookie(&http.Cookie{Name: auth.ChallengeCookie, Value: token})
	rr := httptest.NewRecorder()
	a.voterVerify(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
}

func TestVoterVerifyWithoutChallenge(t *testing.T) {
	c := qt.New(t)
	a := &API{tokens: testTokens()}
	req := httptest.NewRequest(http.MethodPost, "/voter/verify",
		strings.NewReader(`{"code":"123456"}`))
	rr := httptest.NewRecorder()
	a.voterVerify(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)
}

func TestRequireRightsWithoutSession(t *testing.T) {
	c := qt.New(t)
	a := &API{tokens: testTokens()}
	handler := a.requireVoter(func(http.ResponseWriter, *http.Request) {
		c.Error("handler should not run")
	})

	// No cookie at all.
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)

	// Garbage cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenCookie, Value: "garbage"})
	rr = httptest.NewRecorder()
	handler(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)

	// A token signed under another secret.
	other := &auth.Tokens{Secret: []byte("other"), AuthTTL: time.Hour}
	forged, err := other.NewSession("00112233445566778899aabb", auth.RightsVoter)
	c.Assert(err, qt.IsNil)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenCookie, Value: forged})
	rr = httptest.NewRecorder()
	handler(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)
}

func TestRequireRightsWrongClass(t *testing.T) {
	c := qt.New(t)
	a := &API{tokens: testTokens()}
	handler := a.requireAdmin(func(http.ResponseWriter, *http.Request) {
		c.Error("handler should not run")
	})

	// A valid voter session is not enough for an admin endpoint.
	token, err := a.tokens.NewSession("00112233445566778899aabb", auth.RightsVoter)
	c.Assert(err, qt.IsNil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenCookie, Value: token})
	rr := httptest.NewRecorder()
	handler(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)
}

func TestLogoutClearsCookies(t *testing.T) {
	c := qt.New(t)
	a := &API{tokens: testTokens()}
	rr := httptest.NewRecorder()
	a.logout(rr, httptest.NewRequest(http.MethodDelete, "/auth", nil))
	c.Assert(rr.Code, qt.Equals, http.StatusOK)

	cleared := map[string]bool{}
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared[cookie.Name] = true
		}
	}
	c.Assert(cleared[auth.AuthTokenCookie], qt.IsTrue)
	c.Assert(cleared[auth.ChallengeCookie], qt.IsTrue)
}

func TestRemoteIP(t *testing.T) {
	c := qt.New(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	c.Assert(remoteIP(req), qt.Equals, "203.0.113.9")
}
