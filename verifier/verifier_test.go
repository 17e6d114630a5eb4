package verifier

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

var candidates = []types.CandidateID{"Chris", "Parry"}

// buildResults runs a miniature election in memory: five confirmed and two
// audited ballots on one question.
func buildResults(t *testing.T) (*ElectionResults, *dreip.ElectionKeys) {
	t.Helper()
	c := qt.New(t)
	keys, err := dreip.NewElectionKeys(rand.Reader, "Test Election", 0, 3600)
	c.Assert(err, qt.IsNil)

	chris := dreip.NewCandidateTotals()
	parry := dreip.NewCandidateTotals()
	totals := map[types.CandidateID]*dreip.CandidateTotals{
		"Chris": &chris,
		"Parry": &parry,
	}

	results := &ElectionResults{
		Election:  keys.Data(false),
		Audited:   make(map[string]ballot.ReceiptData),
		Confirmed: make(map[string]ballot.ReceiptData),
		Totals:    make(map[types.CandidateID]dreip.CandidateTotals),
	}

	nextID := types.BallotID(1)
	for i := 0; i < 5; i++ {
		yes := candidates[i%2]
		b, err := ballot.New(rand.Reader, keys, 1, 1, nextID, yes, candidates, time.Now())
		c.Assert(err, qt.IsNil)
		confirmed, err := ballot.Confirm(*b, totals)
		c.Assert(err, qt.IsNil)
		receipt, err := ballot.NewReceipt(confirmed, keys)
		c.Assert(err, qt.IsNil)
		results.Confirmed[BallotKey(nextID)] = receipt.Data()
		nextID++
	}
	for i := 0; i < 2; i++ {
		b, err := ballot.New(rand.Reader, keys, 1, 1, nextID, "Parry", candidates, time.Now())
		c.Assert(err, qt.IsNil)
		receipt, err := ballot.NewReceipt(ballot.Audit(*b), keys)
		c.Assert(err, qt.IsNil)
		results.Audited[BallotKey(nextID)] = receipt.Data()
		nextID++
	}

	results.Totals["Chris"] = chris
	results.Totals["Parry"] = parry
	return results, keys
}

func TestVerifyCleanDump(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)
	c.Assert(results.Verify(), qt.IsNil)
}

func TestVerifySurvivesJSONRoundTrip(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)
	raw, err := json.Marshal(results)
	c.Assert(err, qt.IsNil)

	// The dump must never contain the private key.
	c.Assert(string(raw), qt.Not(qt.Contains), "private_key")

	decoded, err := ParseResults(raw)
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.Verify(), qt.IsNil)
}

func TestVerifyFlippedSignature(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)

	receipt := results.Confirmed["1"]
	receipt.Signature = append(types.HexBytes{}, receipt.Signature...)
	receipt.Signature[10] ^= 0x01
	results.Confirmed["1"] = receipt

	err := results.Verify()
	var receiptErr *ReceiptError
	c.Assert(err, qt.ErrorAs, &receiptErr)
	c.Assert(receiptErr.BallotID, qt.Equals, types.BallotID(1))
}

func TestVerifyFlippedAuditedSignature(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)

	receipt := results.Audited["6"]
	receipt.Signature = append(types.HexBytes{}, receipt.Signature...)
	receipt.Signature[0] ^= 0x80
	results.Audited["6"] = receipt

	err := results.Verify()
	var receiptErr *ReceiptError
	c.Assert(err, qt.ErrorAs, &receiptErr)
	c.Assert(receiptErr.BallotID, qt.Equals, types.BallotID(6))
}

func TestVerifyManipulatedTally(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)

	tampered := results.Totals["Chris"]
	tally, err := dreip.ParseScalar(tampered.Tally)
	c.Assert(err, qt.IsNil)
	tampered.Tally = dreip.ScalarBytes(tally.Add(tally, big.NewInt(1)))
	results.Totals["Chris"] = tampered

	err = results.Verify()
	var tallyErr *dreip.TallyError
	c.Assert(err, qt.ErrorAs, &tallyErr)
	c.Assert(tallyErr.CandidateID, qt.Equals, "Chris")
}

func TestVerifyWrongCandidates(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)

	results.Totals["Imposter"] = results.Totals["Parry"]
	delete(results.Totals, "Parry")

	err := results.Verify()
	c.Assert(err, qt.ErrorIs, dreip.ErrWrongCandidates)
}

func TestVerifyTamperedAuditedSecrets(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)

	// Claim the audited vote was for the other candidate by swapping the
	// revealed v values: the secrets no longer match the public Z values.
	receipt := results.Audited["6"]
	votes := make(map[types.CandidateID]ballot.VoteReceipt, len(receipt.Votes))
	for name, vote := range receipt.Votes {
		votes[name] = vote
	}
	chris, parry := votes["Chris"], votes["Parry"]
	chris.SecretV, parry.SecretV = parry.SecretV, chris.SecretV
	votes["Chris"], votes["Parry"] = chris, parry
	receipt.Votes = votes
	results.Audited["6"] = receipt

	c.Assert(results.Verify(), qt.IsNotNil)
}

func TestVerifyStateMismatch(t *testing.T) {
	c := qt.New(t)
	results, _ := buildResults(t)

	// An audited receipt smuggled into the confirmed map fails.
	receipt := results.Audited["6"]
	delete(results.Audited, "6")
	results.Confirmed["6"] = receipt

	c.Assert(results.Verify(), qt.IsNotNil)
}
