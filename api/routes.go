package api

// Route constants for the API endpoints.
const (
	// URL parameters.
	ElectionURLParam = "electionId"
	QuestionURLParam = "questionId"
	BallotURLParam   = "ballotId"

	// Health endpoint.
	PingEndpoint = "/ping" // GET: health check

	// Authentication endpoints.
	AdminAuthEndpoint      = "/admins/authenticate" // POST: admin login, sets session cookie
	AdminsEndpoint         = "/admins"              // POST: create another admin
	VoterChallengeEndpoint = "/voter/challenge"     // GET: issue OTP challenge cookie
	VoterVerifyEndpoint    = "/voter/verify"        // POST: verify OTP code, sets session cookie
	LogoutEndpoint         = "/auth"                // DELETE: clear session cookie

	// Election endpoints.
	ElectionsEndpoint       = "/elections"                                         // GET: list, POST: create draft
	ElectionEndpoint        = ElectionsEndpoint + "/{" + ElectionURLParam + "}"    // GET: election detail
	ElectionPublishEndpoint = ElectionEndpoint + "/publish"                        // POST: Draft -> Published
	ElectionArchiveEndpoint = ElectionEndpoint + "/archive"                        // POST: Published -> Archived
	ElectionJoinEndpoint    = ElectionEndpoint + "/join"                           // POST: voter joins election
	AllowedEndpoint         = ElectionEndpoint + "/questions/allowed"              // GET: allowed question ids
	VoterGroupsEndpoint     = "/voter/elections/{" + ElectionURLParam + "}/groups" // GET: joined groups

	// Voting endpoints.
	CastEndpoint    = ElectionEndpoint + "/votes/cast"    // POST: cast ballots
	AuditEndpoint   = ElectionEndpoint + "/votes/audit"   // POST: audit ballots
	ConfirmEndpoint = ElectionEndpoint + "/votes/confirm" // POST: confirm ballots

	// Public read endpoints.
	QuestionEndpoint = ElectionEndpoint + "/{" + QuestionURLParam + "}"
	BallotsEndpoint  = QuestionEndpoint + "/ballots"                        // GET: paginated receipts
	BallotEndpoint   = BallotsEndpoint + "/{" + BallotURLParam + "}"        // GET: one receipt
	TotalsEndpoint   = QuestionEndpoint + "/totals"                         // GET: candidate tallies
	DumpEndpoint     = QuestionEndpoint + "/dump"                           // GET: verifiable bundle
)
