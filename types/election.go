package types

import (
	"fmt"
	"time"
)

// ElectionState is a state in the election lifecycle.
type ElectionState string

const (
	// ElectionDraft elections are under construction, only visible to admins.
	ElectionDraft ElectionState = "Draft"
	// ElectionPublished elections are ready, in progress, or completed.
	// Visible to all.
	ElectionPublished ElectionState = "Published"
	// ElectionArchived elections are completed, hidden by default, but
	// retrievable by all.
	ElectionArchived ElectionState = "Archived"
)

// Valid reports whether s is a known election state.
func (s ElectionState) Valid() bool {
	switch s {
	case ElectionDraft, ElectionPublished, ElectionArchived:
		return true
	}
	return false
}

// ElectionMetadata is the top-level metadata of an election.
type ElectionMetadata struct {
	Name      string        `json:"name" bson:"name"`
	State     ElectionState `json:"state" bson:"state"`
	StartTime time.Time     `json:"start_time" bson:"start_time"`
	EndTime   time.Time     `json:"end_time" bson:"end_time"`
}

// Active reports whether ballots may be created at the given instant:
// the election is published and start_time <= now < end_time. The end time
// is exclusive.
func (m ElectionMetadata) Active(now time.Time) bool {
	return m.State == ElectionPublished && !now.Before(m.StartTime) && now.Before(m.EndTime)
}

// Electorate is a potentially mutually-exclusive set of logically related
// groups. Voters belong to groups, and certain questions may be gated by
// group membership.
type Electorate struct {
	Name    string   `json:"name" bson:"name"`
	Groups  []string `json:"groups" bson:"groups"`
	IsMutex bool     `json:"is_mutex" bson:"is_mutex"`
}

// HasGroup reports whether the electorate contains the named group.
func (e Electorate) HasGroup(group string) bool {
	for _, g := range e.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Question is a single question of an election.
type Question struct {
	// ID is unique within the election.
	ID QuestionID `json:"id" bson:"id"`
	// Description is the question text.
	Description string `json:"description" bson:"description"`
	// Constraints gate eligibility: a voter must be in at least one of these
	// electorate groups to vote on this question. A question with no
	// constraints is open to every joiner.
	Constraints map[string][]string `json:"constraints" bson:"constraints"`
	// Candidates are the possible answers for this question, in declaration
	// order, distinct.
	Candidates []CandidateID `json:"candidates" bson:"candidates"`
}

// HasCandidate reports whether the question lists the named candidate.
func (q Question) HasCandidate(candidate CandidateID) bool {
	for _, c := range q.Candidates {
		if c == candidate {
			return true
		}
	}
	return false
}

// ElectionSpec is the admin-supplied description of a new election.
type ElectionSpec struct {
	Name        string         `json:"name"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Electorates []Electorate   `json:"electorates"`
	Questions   []QuestionSpec `json:"questions"`
}

// Validate checks the basic well-formedness of the spec.
func (s ElectionSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("election name must not be empty")
	}
	if !s.EndTime.After(s.StartTime) {
		return fmt.Errorf("election end time must be after start time")
	}
	seenElectorates := make(map[string]bool, len(s.Electorates))
	for _, e := range s.Electorates {
		if seenElectorates[e.Name] {
			return fmt.Errorf("duplicate electorate %q", e.Name)
		}
		seenElectorates[e.Name] = true
	}
	for i, q := range s.Questions {
		if len(q.Candidates) == 0 {
			return fmt.Errorf("question %d has no candidates", i+1)
		}
		seen := make(map[string]bool, len(q.Candidates))
		for _, c := range q.Candidates {
			if seen[c] {
				return fmt.Errorf("question %d has duplicate candidate %q", i+1, c)
			}
			seen[c] = true
		}
		for electorate := range q.Constraints {
			if !seenElectorates[electorate] {
				return fmt.Errorf("question %d constrains unknown electorate %q", i+1, electorate)
			}
		}
	}
	return nil
}

// QuestionSpec is the admin-supplied description of a question.
type QuestionSpec struct {
	Description string              `json:"description"`
	Constraints map[string][]string `json:"constraints"`
	Candidates  []CandidateID       `json:"candidates"`
}

// Question converts the spec into a question with the given unique ID.
func (s QuestionSpec) Question(id QuestionID) Question {
	return Question{
		ID:          id,
		Description: s.Description,
		Constraints: s.Constraints,
		Candidates:  s.Candidates,
	}
}
