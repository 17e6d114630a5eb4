// Package ballot implements the ballot state machine. The three states —
// Unconfirmed, Audited and Confirmed — are distinct types, so that a ballot's
// state is pinned at compile time and the transitions (Audit, Confirm) are
// the only way to move between them. Secrets are present internally in the
// Unconfirmed and Audited states, exposed in receipts only for Audited, and
// erased by Confirm.
package ballot

import (
	"sort"

	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

// State tags used verbatim in stored documents and in the signed receipt
// message.
const (
	TagUnconfirmed = "Unconfirmed"
	TagAudited     = "Audited"
	TagConfirmed   = "Confirmed"
)

// State is the type-level ballot state. Only the three state types of this
// package satisfy it.
type State interface {
	comparable
	// Tag returns the ASCII state tag.
	Tag() string
	// exposesSecrets reports whether receipts of this state reveal the vote
	// secrets.
	exposesSecrets() bool
	// receiptData returns the extra receipt payload: the yes-candidate name
	// for audited ballots, empty otherwise.
	receiptData(crypto *dreip.Ballot) types.CandidateID
}

// Unconfirmed is the initial ballot state: secrets stored, none revealed.
type Unconfirmed struct{}

func (Unconfirmed) Tag() string          { return TagUnconfirmed }
func (Unconfirmed) exposesSecrets() bool { return false }

func (Unconfirmed) receiptData(*dreip.Ballot) types.CandidateID { return "" }

// Audited is a terminal state: secrets stored and revealed in receipts.
type Audited struct{}

func (Audited) Tag() string          { return TagAudited }
func (Audited) exposesSecrets() bool { return true }

// receiptData returns the candidate the revealed vote was for, so a viewer
// can interpret the receipt. A malformed ballot without a yes-vote would not
// pass verification anyway, so the first candidate is returned as a fallback
// rather than failing.
func (Audited) receiptData(crypto *dreip.Ballot) types.CandidateID {
	names := make([]types.CandidateID, 0, len(crypto.Votes))
	for name := range crypto.Votes {
		names = append(names, name)
	}
	sort.Strings(names)
	one := dreip.ScalarBytes(oneScalar())
	for _, name := range names {
		if secrets := crypto.Votes[name].Secrets; secrets != nil && secrets.V.Equal(one) {
			return name
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// Confirmed is a terminal state: secrets erased everywhere.
type Confirmed struct{}

func (Confirmed) Tag() string          { return TagConfirmed }
func (Confirmed) exposesSecrets() bool { return false }

func (Confirmed) receiptData(*dreip.Ballot) types.CandidateID { return "" }
