// Package api exposes the HTTP surface of the voting service: admin and
// voter authentication, election lifecycle, the vote engine endpoints, and
// the public verifiability read paths.
package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/verivote/dreip-backend/auth"
	"github.com/verivote/dreip-backend/captcha"
	"github.com/verivote/dreip-backend/finalizer"
	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/sms"
	"github.com/verivote/dreip-backend/storage"
	"github.com/verivote/dreip-backend/voting"
)

const maxRequestBodyLog = 512 // Maximum length of request body to log

// APIConfig represents the configuration for the API HTTP server and its
// collaborators.
type APIConfig struct {
	Host       string
	Port       int
	Store      *storage.Store
	Finalizers *finalizer.Finalizers
	Tokens     *auth.Tokens
	Sms        sms.Sender
	Captcha    captcha.Verifier
	HmacSecret []byte
}

// API is the HTTP server with cookie-based session authentication.
type API struct {
	router     *chi.Mux
	store      *storage.Store
	engine     *voting.Engine
	finalizers *finalizer.Finalizers
	tokens     *auth.Tokens
	sms        sms.Sender
	captcha    captcha.Verifier
	hmacSecret []byte
}

// New creates a new API instance with the given configuration and starts the
// HTTP server in the background.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Store == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Tokens == nil {
		return nil, fmt.Errorf("missing token configuration")
	}

	a := &API{
		store:      conf.Store,
		engine:     voting.New(conf.Store, rand.Reader),
		finalizers: conf.Finalizers,
		tokens:     conf.Tokens,
		sms:        conf.Sms,
		captcha:    conf.Captcha,
		hmacSecret: conf.HmacSecret,
	}
	a.initRouter()

	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	// authentication endpoints
	log.Infow("register handler", "endpoint", AdminAuthEndpoint, "method", "POST")
	a.router.Post(AdminAuthEndpoint, a.adminAuthenticate)
	log.Infow("register handler", "endpoint", AdminsEndpoint, "method", "POST")
	a.router.Post(AdminsEndpoint, a.requireAdmin(a.createAdmin))
	log.Infow("register handler", "endpoint", VoterChallengeEndpoint, "method", "GET")
	a.router.Get(VoterChallengeEndpoint, a.voterChallenge)
	log.Infow("register handler", "endpoint", VoterVerifyEndpoint, "method", "POST")
	a.router.Post(VoterVerifyEndpoint, a.voterVerify)
	log.Infow("register handler", "endpoint", LogoutEndpoint, "method", "DELETE")
	a.router.Delete(LogoutEndpoint, a.logout)

	// election lifecycle endpoints
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
	a.router.Get(ElectionsEndpoint, a.listElections)
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.requireAdmin(a.createElection))
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
	a.router.Get(ElectionEndpoint, a.electionDetail)
	log.Infow("register handler", "endpoint", ElectionPublishEndpoint, "method", "POST")
	a.router.Post(ElectionPublishEndpoint, a.requireAdmin(a.publishElection))
	log.Infow("register handler", "endpoint", ElectionArchiveEndpoint, "method", "POST")
	a.router.Post(ElectionArchiveEndpoint, a.requireAdmin(a.archiveElection))

	// voter endpoints
	log.Infow("register handler", "endpoint", ElectionJoinEndpoint, "method", "POST")
	a.router.Post(ElectionJoinEndpoint, a.requireVoter(a.joinElection))
	log.Infow("register handler", "endpoint", AllowedEndpoint, "method", "GET")
	a.router.Get(AllowedEndpoint, a.requireVoter(a.allowedQuestions))
	log.Infow("register handler", "endpoint", VoterGroupsEndpoint, "method", "GET")
	a.router.Get(VoterGroupsEndpoint, a.requireVoter(a.voterGroups))

	// voting endpoints
	log.Infow("register handler", "endpoint", CastEndpoint, "method", "POST")
	a.router.Post(CastEndpoint, a.requireVoter(a.castBallots))
	log.Infow("register handler", "endpoint", AuditEndpoint, "method", "POST")
	a.router.Post(AuditEndpoint, a.requireVoter(a.auditBallots))
	log.Infow("register handler", "endpoint", ConfirmEndpoint, "method", "POST")
	a.router.Post(ConfirmEndpoint, a.requireVoter(a.confirmBallots))

	// public read endpoints
	log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "GET")
	a.router.Get(BallotsEndpoint, a.questionBallots)
	log.Infow("register handler", "endpoint", BallotEndpoint, "method", "GET")
	a.router.Get(BallotEndpoint, a.questionBallot)
	log.Infow("register handler", "endpoint", TotalsEndpoint, "method", "GET")
	a.router.Get(TotalsEndpoint, a.questionTotals)
	log.Infow("register handler", "endpoint", DumpEndpoint, "method", "GET")
	a.router.Get(DumpEndpoint, a.questionDump)
}
