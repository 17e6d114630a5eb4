package types

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestHexBytesJSON(t *testing.T) {
	c := qt.New(t)
	b := HexBytes{0xde, 0xad, 0xbe, 0xef}
	raw, err := json.Marshal(b)
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Equals, `"deadbeef"`)

	var decoded HexBytes
	c.Assert(json.Unmarshal(raw, &decoded), qt.IsNil)
	c.Assert(decoded.Equal(b), qt.IsTrue)

	// 0x prefix is accepted for compatibility.
	c.Assert(json.Unmarshal([]byte(`"0xdeadbeef"`), &decoded), qt.IsNil)
	c.Assert(decoded.Equal(b), qt.IsTrue)

	c.Assert(json.Unmarshal([]byte(`"zz"`), &decoded), qt.IsNotNil)
	c.Assert(json.Unmarshal([]byte(`42`), &decoded), qt.IsNotNil)
}

func TestIDBytes(t *testing.T) {
	c := qt.New(t)
	c.Assert(IDBytes(1), qt.DeepEquals, []byte{1, 0, 0, 0})
	c.Assert(IDBytes(0x01020304), qt.DeepEquals, []byte{4, 3, 2, 1})
}

func TestParsePagination(t *testing.T) {
	c := qt.New(t)

	p, err := ParsePagination(url.Values{})
	c.Assert(err, qt.IsNil)
	c.Assert(p.PageNum, qt.Equals, int64(1))
	c.Assert(p.PageSize, qt.Equals, int64(DefaultPageSize))
	c.Assert(p.Skip(), qt.Equals, int64(0))

	p, err = ParsePagination(url.Values{"page_num": {"3"}, "page_size": {"20"}})
	c.Assert(err, qt.IsNil)
	c.Assert(p.Skip(), qt.Equals, int64(40))

	// Oversized page_size is silently capped.
	p, err = ParsePagination(url.Values{"page_size": {"1000"}})
	c.Assert(err, qt.IsNil)
	c.Assert(p.PageSize, qt.Equals, int64(MaxPageSize))

	for _, bad := range []url.Values{
		{"page_num": {"0"}},
		{"page_num": {"-1"}},
		{"page_num": {"x"}},
		{"page_size": {"0"}},
	} {
		_, err := ParsePagination(bad)
		c.Assert(err, qt.IsNotNil, qt.Commentf("query %v", bad))
	}
}

func TestElectionActiveBoundaries(t *testing.T) {
	c := qt.New(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	meta := ElectionMetadata{State: ElectionPublished, StartTime: start, EndTime: end}

	c.Assert(meta.Active(start), qt.IsTrue)
	c.Assert(meta.Active(start.Add(-time.Nanosecond)), qt.IsFalse)
	// The end time is exclusive.
	c.Assert(meta.Active(end), qt.IsFalse)
	c.Assert(meta.Active(end.Add(-time.Nanosecond)), qt.IsTrue)

	draft := meta
	draft.State = ElectionDraft
	c.Assert(draft.Active(start), qt.IsFalse)
}

func TestElectionSpecValidate(t *testing.T) {
	c := qt.New(t)
	start := time.Now()
	valid := ElectionSpec{
		Name:      "Test",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Electorates: []Electorate{
			{Name: "Societies", Groups: []string{"Quidditch"}},
		},
		Questions: []QuestionSpec{
			{
				Description: "Captain?",
				Constraints: map[string][]string{"Societies": {"Quidditch"}},
				Candidates:  []CandidateID{"Chris", "Parry"},
			},
		},
	}
	c.Assert(valid.Validate(), qt.IsNil)

	noName := valid
	noName.Name = ""
	c.Assert(noName.Validate(), qt.IsNotNil)

	backwards := valid
	backwards.EndTime = valid.StartTime
	c.Assert(backwards.Validate(), qt.IsNotNil)

	dupCandidate := valid
	dupCandidate.Questions = []QuestionSpec{
		{Description: "Q", Candidates: []CandidateID{"A", "A"}},
	}
	c.Assert(dupCandidate.Validate(), qt.IsNotNil)

	unknownElectorate := valid
	unknownElectorate.Questions = []QuestionSpec{
		{Description: "Q", Constraints: map[string][]string{"Nowhere": {"X"}}, Candidates: []CandidateID{"A"}},
	}
	c.Assert(unknownElectorate.Validate(), qt.IsNotNil)
}
