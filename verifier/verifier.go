// Package verifier implements the standalone election verification: given a
// public dump of an election question, it reconstructs the tallies and checks
// every proof of well-formedness and every receipt signature, without
// trusting the server that produced the dump.
package verifier

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

// ElectionResults is the dump format of one election question: everything a
// third party needs to verify the tally. Ballot map keys are decimal ballot
// IDs.
type ElectionResults struct {
	Election  dreip.KeysData                              `json:"election"`
	Audited   map[string]ballot.ReceiptData               `json:"audited"`
	Confirmed map[string]ballot.ReceiptData               `json:"confirmed"`
	Totals    map[types.CandidateID]dreip.CandidateTotals `json:"totals"`
}

// ReceiptError reports a receipt whose signature does not verify.
type ReceiptError struct {
	BallotID types.BallotID
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("the receipt for ballot %d has an invalid signature", e.BallotID)
}

// Verify checks the complete dump:
//
//  1. every confirmed ballot is well-formed and the claimed totals equal the
//     homomorphic sums of the confirmed votes,
//  2. every confirmed receipt carries a valid signature,
//  3. every audited receipt is well-formed (including its revealed secrets)
//     and carries a valid signature.
//
// It returns nil iff the whole dump is consistent. Failures are reported as
// *dreip.VoteError, *dreip.BallotProofError, *dreip.TallyError,
// dreip.ErrWrongCandidates or *ReceiptError.
func (r *ElectionResults) Verify() error {
	keys, err := r.Election.Keys()
	if err != nil {
		return fmt.Errorf("election crypto: %w", err)
	}

	confirmed := make(map[types.BallotID]*dreip.Ballot, len(r.Confirmed))
	for key, receipt := range r.Confirmed {
		id, err := parseBallotKey(key, receipt)
		if err != nil {
			return err
		}
		confirmed[id] = ballot.CryptoFromReceipt(receipt)
	}
	if err := dreip.VerifyElection(keys.G1, keys.G2, keys.PublicKey, confirmed, r.Totals); err != nil {
		return err
	}

	for _, id := range sortedBallotIDs(r.Confirmed) {
		receipt := r.Confirmed[id]
		if receipt.State != ballot.TagConfirmed {
			return &ReceiptError{BallotID: receipt.BallotID}
		}
		if !ballot.VerifySignature(receipt, keys.PublicKey) {
			return &ReceiptError{BallotID: receipt.BallotID}
		}
	}

	for _, id := range sortedBallotIDs(r.Audited) {
		receipt := r.Audited[id]
		if _, err := parseBallotKey(id, receipt); err != nil {
			return err
		}
		if receipt.State != ballot.TagAudited {
			return &ReceiptError{BallotID: receipt.BallotID}
		}
		crypto := ballot.CryptoFromReceipt(receipt)
		if err := dreip.VerifyBallot(keys.G1, keys.G2, keys.PublicKey, receipt.BallotID, crypto); err != nil {
			return err
		}
		// Audited receipts reveal their secrets; they must match the public
		// values.
		for _, candidate := range crypto.Candidates() {
			if err := dreip.VerifyVoteSecrets(keys.G1, keys.G2, crypto.Votes[candidate]); err != nil {
				return &dreip.VoteError{BallotID: receipt.BallotID, CandidateID: candidate}
			}
		}
		if !ballot.VerifySignature(receipt, keys.PublicKey) {
			return &ReceiptError{BallotID: receipt.BallotID}
		}
	}
	return nil
}

// parseBallotKey checks a dump map key against the receipt it indexes.
func parseBallotKey(key string, receipt ballot.ReceiptData) (types.BallotID, error) {
	id, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ballot id key %q: %w", key, err)
	}
	if types.BallotID(id) != receipt.BallotID {
		return 0, fmt.Errorf("ballot key %q does not match receipt ballot id %d", key, receipt.BallotID)
	}
	return types.BallotID(id), nil
}

// sortedBallotIDs returns the map keys in a deterministic order so failures
// are reported stably.
func sortedBallotIDs(receipts map[string]ballot.ReceiptData) []string {
	keys := make([]string, 0, len(receipts))
	for key := range receipts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.ParseUint(keys[i], 10, 64)
		b, _ := strconv.ParseUint(keys[j], 10, 64)
		return a < b
	})
	return keys
}

// ParseResults decodes a JSON dump.
func ParseResults(data []byte) (*ElectionResults, error) {
	var results ElectionResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode election dump: %w", err)
	}
	return &results, nil
}

// BallotKey formats a ballot ID as a dump map key.
func BallotKey(id types.BallotID) string {
	return strconv.FormatUint(uint64(id), 10)
}
