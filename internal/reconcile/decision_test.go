package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

func ptr(s string) *string { return &s }

func primary(id int64, created int64) model.Contact {
	return model.Contact{Id: id, LinkPrecedence: model.Primary, CreatedAt: time.Unix(created, 0)}
}

func secondary(id int64, created int64, root model.Contact) model.Contact {
	linked := root.Id
	return model.Contact{Id: id, LinkPrecedence: model.Secondary, LinkedId: &linked, CreatedAt: time.Unix(created, 0)}
}

func matchOf(c model.Contact, root model.Contact) *Match {
	return &Match{Contact: c, Root: root}
}

func both() Submission {
	return Submission{Email: ptr("a@x.com"), Phone: ptr("111")}
}

func TestDecide(t *testing.T) {
	p1 := primary(1, 100)
	p2 := primary(2, 200)
	s3 := secondary(3, 300, p1)
	s4 := secondary(4, 400, p2)
	s5 := secondary(5, 500, p1)

	tests := []struct {
		name      string
		obs       Observation
		wantCase  Case
		wantRoot  int64
		insert    *Insertion
		winner    int64
		loser     int64
		wantMerge bool
	}{
		{
			name:     "exact repeat of a secondary resolves to its primary",
			obs:      Observation{Submission: both(), Exact: matchOf(s3, p1), Email: matchOf(p1, p1), Phone: matchOf(p1, p1)},
			wantCase: CaseExactRepeat,
			wantRoot: 1,
		},
		{
			name:     "nothing known creates a primary",
			obs:      Observation{Submission: both()},
			wantCase: CaseNewPrimary,
			insert:   &Insertion{Precedence: model.Primary},
		},
		{
			name:     "only email known attaches to the email's root",
			obs:      Observation{Submission: both(), Email: matchOf(s3, p1)},
			wantCase: CaseEmailMatch,
			wantRoot: 1,
			insert:   &Insertion{Precedence: model.Secondary, LinkedId: &p1.Id},
		},
		{
			name:     "only phone known attaches to the phone's root",
			obs:      Observation{Submission: both(), Phone: matchOf(p2, p2)},
			wantCase: CasePhoneMatch,
			wantRoot: 2,
			insert:   &Insertion{Precedence: model.Secondary, LinkedId: &p2.Id},
		},
		{
			name:     "single known email is an exact repeat",
			obs:      Observation{Submission: Submission{Email: ptr("a@x.com")}, Email: matchOf(s4, p2)},
			wantCase: CaseExactRepeat,
			wantRoot: 2,
		},
		{
			name:     "single known phone is an exact repeat",
			obs:      Observation{Submission: Submission{Phone: ptr("111")}, Phone: matchOf(p1, p1)},
			wantCase: CaseExactRepeat,
			wantRoot: 1,
		},
		{
			name:     "single unknown phone creates a primary",
			obs:      Observation{Submission: Submission{Phone: ptr("111")}},
			wantCase: CaseNewPrimary,
			insert:   &Insertion{Precedence: model.Primary},
		},
		{
			name:      "secondaries of different primaries merge the roots",
			obs:       Observation{Submission: both(), Email: matchOf(s4, p2), Phone: matchOf(s3, p1)},
			wantCase:  CaseSecondariesSplit,
			wantRoot:  1,
			wantMerge: true,
			winner:    1,
			loser:     2,
		},
		{
			name:     "secondaries of the same primary change nothing",
			obs:      Observation{Submission: both(), Email: matchOf(s3, p1), Phone: matchOf(s5, p1)},
			wantCase: CaseSecondariesShared,
			wantRoot: 1,
		},
		{
			name:      "two primaries merge into the older one",
			obs:       Observation{Submission: both(), Email: matchOf(p2, p2), Phone: matchOf(p1, p1)},
			wantCase:  CasePrimariesMerge,
			wantRoot:  1,
			wantMerge: true,
			winner:    1,
			loser:     2,
		},
		{
			name:      "email primary and phone secondary of another identity merge",
			obs:       Observation{Submission: both(), Email: matchOf(p1, p1), Phone: matchOf(s4, p2)},
			wantCase:  CaseEmailPrimary,
			wantRoot:  1,
			wantMerge: true,
			winner:    1,
			loser:     2,
		},
		{
			name:     "email primary and its own secondary by phone change nothing",
			obs:      Observation{Submission: both(), Email: matchOf(p1, p1), Phone: matchOf(s3, p1)},
			wantCase: CaseEmailPrimary,
			wantRoot: 1,
		},
		{
			name:      "phone primary and email secondary of an older identity merge",
			obs:       Observation{Submission: both(), Email: matchOf(s3, p1), Phone: matchOf(p2, p2)},
			wantCase:  CasePhonePrimary,
			wantRoot:  1,
			wantMerge: true,
			winner:    1,
			loser:     2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Decide(tt.obs)
			assert.Equal(t, tt.wantCase, plan.Case)
			assert.Equal(t, tt.wantRoot, plan.Root)
			assert.Equal(t, tt.insert, plan.Insert)
			if tt.wantMerge {
				if assert.NotNil(t, plan.Merge) {
					assert.Equal(t, tt.winner, plan.Merge.Winner.Id)
					assert.Equal(t, tt.loser, plan.Merge.Loser.Id)
				}
			} else {
				assert.Nil(t, plan.Merge)
			}
			assert.Equal(t, tt.insert != nil || tt.wantMerge, plan.Mutates())
		})
	}
}

// TestDecideSeniorityTieBreak expects the lower id to win between contacts created in the same
// instant.
func TestDecideSeniorityTieBreak(t *testing.T) {
	a := primary(7, 100)
	b := primary(3, 100)
	plan := Decide(Observation{Submission: both(), Email: matchOf(a, a), Phone: matchOf(b, b)})
	if assert.NotNil(t, plan.Merge) {
		assert.Equal(t, int64(3), plan.Merge.Winner.Id)
		assert.Equal(t, int64(7), plan.Merge.Loser.Id)
	}
	assert.Equal(t, int64(3), plan.Root)
}

func TestSubmissionNormalized(t *testing.T) {
	sub := Submission{Email: ptr("  a@x.com "), Phone: ptr("   ")}.normalized()
	assert.Equal(t, "a@x.com", *sub.Email)
	assert.Nil(t, sub.Phone)
	assert.Equal(t, []string{"email:a@x.com"}, sub.lockKeys())
}

func TestBuildTrail(t *testing.T) {
	p := model.Contact{Id: 1, Email: ptr("a@x.com"), Phone: ptr("111"), LinkPrecedence: model.Primary}
	secondaries := []model.Contact{
		{Id: 2, Email: ptr("b@x.com"), Phone: ptr("111")},
		{Id: 3, Email: ptr("a@x.com"), Phone: nil},
		{Id: 4, Email: nil, Phone: ptr("222")},
	}
	trail := buildTrail(p, secondaries)
	assert.Equal(t, int64(1), trail.PrimaryContactId)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, trail.Emails)
	assert.Equal(t, []string{"111", "222"}, trail.PhoneNumbers)
	assert.Equal(t, []int64{2, 3, 4}, trail.SecondaryContactIds)

	alone := buildTrail(model.Contact{Id: 9, Phone: ptr("333")}, nil)
	assert.Empty(t, alone.Emails)
	assert.NotNil(t, alone.Emails)
	assert.Empty(t, alone.SecondaryContactIds)
}
