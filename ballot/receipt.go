package ballot

import (
	"fmt"
	"sort"

	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

// VoteReceipt is the public per-candidate data of a receipt. SecretR and
// SecretV are only present in audited receipts.
type VoteReceipt struct {
	R       types.HexBytes `json:"R"`
	Z       types.HexBytes `json:"Z"`
	Pwf     dreip.VotePwf  `json:"pwf"`
	SecretR types.HexBytes `json:"r,omitempty"`
	SecretV types.HexBytes `json:"v,omitempty"`
}

// ReceiptData is the wire form of a receipt: the externally observable
// projection of a ballot, signed by the election key. The Candidate field is
// only set for audited receipts and names the candidate the revealed vote
// was for.
type ReceiptData struct {
	Votes      map[types.CandidateID]VoteReceipt `json:"votes"`
	Pwf        dreip.BallotPwf                   `json:"pwf"`
	BallotID   types.BallotID                    `json:"ballot_id"`
	ElectionID types.ElectionID                  `json:"election_id"`
	QuestionID types.QuestionID                  `json:"question_id"`
	State      string                            `json:"state"`
	Candidate  types.CandidateID                 `json:"candidate,omitempty"`
	Signature  types.HexBytes                    `json:"signature"`
}

// Receipt is a ReceiptData whose state is pinned at the type level.
type Receipt[S State] ReceiptData

// Data returns the state-erased wire form of the receipt.
func (r Receipt[S]) Data() ReceiptData {
	return ReceiptData(r)
}

// NewReceipt projects a ballot into its receipt, stripping or keeping the
// secrets as dictated by the state, and signs it with the election private
// key.
func NewReceipt[S State](b Ballot[S], keys *dreip.ElectionKeys) (Receipt[S], error) {
	var s S
	if keys.PrivateKey == nil {
		return Receipt[S]{}, fmt.Errorf("election keys carry no private key")
	}

	votes := make(map[types.CandidateID]VoteReceipt, len(b.Crypto.Votes))
	for candidate, vote := range b.Crypto.Votes {
		vr := VoteReceipt{R: vote.R, Z: vote.Z, Pwf: vote.Pwf}
		if s.exposesSecrets() {
			if vote.Secrets == nil {
				return Receipt[S]{}, fmt.Errorf("ballot %d is missing secrets for candidate %q", b.BallotID, candidate)
			}
			vr.SecretR = vote.Secrets.R
			vr.SecretV = vote.Secrets.V
		}
		votes[candidate] = vr
	}

	receipt := Receipt[S]{
		Votes:      votes,
		Pwf:        b.Crypto.Pwf,
		BallotID:   b.BallotID,
		ElectionID: b.ElectionID,
		QuestionID: b.QuestionID,
		State:      s.Tag(),
		Candidate:  s.receiptData(&b.Crypto),
	}

	signature, err := dreip.Sign(keys.PrivateKey, SignedPayload(receipt.Data()))
	if err != nil {
		return Receipt[S]{}, fmt.Errorf("sign receipt %d: %w", b.BallotID, err)
	}
	receipt.Signature = signature
	return receipt, nil
}

// SignedPayload builds the canonical byte string covered by a receipt
// signature: for each candidate in lexicographic order R, Z and the value
// proof (plus the revealed secrets when present), then the ballot proof, the
// three IDs as little-endian 32-bit values, the state tag, and the audited
// yes-candidate name.
func SignedPayload(r ReceiptData) []byte {
	candidates := make([]types.CandidateID, 0, len(r.Votes))
	for name := range r.Votes {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	var msg []byte
	for _, name := range candidates {
		vote := r.Votes[name]
		msg = append(msg, vote.R...)
		msg = append(msg, vote.Z...)
		msg = append(msg, vote.Pwf.C1...)
		msg = append(msg, vote.Pwf.C2...)
		msg = append(msg, vote.Pwf.R1...)
		msg = append(msg, vote.Pwf.R2...)
		msg = append(msg, vote.SecretR...)
		msg = append(msg, vote.SecretV...)
	}
	msg = append(msg, r.Pwf.A...)
	msg = append(msg, r.Pwf.B...)
	msg = append(msg, r.Pwf.R...)
	msg = append(msg, types.IDBytes(r.BallotID)...)
	msg = append(msg, types.IDBytes(r.ElectionID)...)
	msg = append(msg, types.IDBytes(r.QuestionID)...)
	msg = append(msg, []byte(r.State)...)
	msg = append(msg, []byte(r.Candidate)...)
	return msg
}

// VerifySignature checks the receipt signature against the election public
// key.
func VerifySignature(r ReceiptData, publicKey dreip.Point) bool {
	return dreip.Verify(publicKey, SignedPayload(r), r.Signature)
}

// CryptoFromReceipt rebuilds the cryptographic ballot payload from a receipt,
// including any revealed secrets, so the standard ballot verification can run
// on it.
func CryptoFromReceipt(r ReceiptData) *dreip.Ballot {
	votes := make(map[types.CandidateID]dreip.Vote, len(r.Votes))
	for candidate, vr := range r.Votes {
		vote := dreip.Vote{R: vr.R, Z: vr.Z, Pwf: vr.Pwf}
		if len(vr.SecretR) > 0 || len(vr.SecretV) > 0 {
			vote.Secrets = &dreip.VoteSecrets{R: vr.SecretR, V: vr.SecretV}
		}
		votes[candidate] = vote
	}
	return &dreip.Ballot{Votes: votes, Pwf: r.Pwf}
}
