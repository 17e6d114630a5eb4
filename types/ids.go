package types

import "encoding/binary"

// ElectionID identifies an election. IDs are short monotonically allocated
// integers so they can appear in URLs and receipts.
type ElectionID = uint32

// QuestionID identifies a question within an election, assigned 1..N in
// declaration order.
type QuestionID = uint32

// BallotID identifies a ballot within an election, monotonically allocated
// per election.
type BallotID = uint32

// CandidateID is a candidate name, unique within its question.
type CandidateID = string

// IDBytes returns the canonical byte representation of a 32-bit ID as used in
// signatures and Fiat-Shamir challenges: 4 bytes little-endian.
func IDBytes(id uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, id)
	return b
}
