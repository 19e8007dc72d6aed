package reconcile

import "gitlab.com/dirk.krummacker/identity-service/internal/model"

// Case names the rule of the decision table that handled a submission.
type Case string

const (
	CaseExactRepeat       Case = "exact_repeat"
	CaseNewPrimary        Case = "new_primary"
	CaseEmailMatch        Case = "email_match"
	CasePhoneMatch        Case = "phone_match"
	CaseSecondariesSplit  Case = "secondaries_split"
	CaseSecondariesShared Case = "secondaries_shared"
	CasePrimariesMerge    Case = "primaries_merge"
	CaseEmailPrimary      Case = "email_primary_phone_secondary"
	CasePhonePrimary      Case = "phone_primary_email_secondary"
)

// Match is a contact found by a lookup together with the primary it belongs to. For a primary,
// Root equals Contact.
type Match struct {
	Contact model.Contact
	Root    model.Contact
}

// Observation is everything the decision needs to know about the store: the normalized
// submission and the result of the three lookups. A nil match means the lookup found nothing.
type Observation struct {
	Submission Submission
	Exact      *Match
	Email      *Match
	Phone      *Match
}

// Insertion describes the single row a plan creates.
type Insertion struct {
	Precedence model.LinkPrecedence
	LinkedId   *int64
}

// Merge describes the demotion of Loser to a secondary of Winner. Every contact pointing at
// Loser is re-pointed to Winner in the same step.
type Merge struct {
	Winner model.Contact
	Loser  model.Contact
}

// Plan is the outcome of the decision table. Root is the primary the trail is built for; it is
// zero when Insert creates a new primary.
type Plan struct {
	Case   Case
	Root   int64
	Insert *Insertion
	Merge  *Merge
}

// Mutates reports whether applying the plan writes to the store.
func (p Plan) Mutates() bool {
	return p.Insert != nil || p.Merge != nil
}

// role is the precedence of an optional match; "" stands for no match.
func role(m *Match) model.LinkPrecedence {
	if m == nil {
		return ""
	}
	return m.Contact.LinkPrecedence
}

// Decide applies the decision table to an observation. It performs no I/O.
func Decide(obs Observation) Plan {
	if obs.Exact != nil {
		return Plan{Case: CaseExactRepeat, Root: obs.Exact.Root.Id}
	}

	// A submission with a single identifier that is already known adds nothing new. Inserting a
	// secondary here would add another row on every repeat and break idempotence.
	sub := obs.Submission
	if sub.Phone == nil && obs.Email != nil {
		return Plan{Case: CaseExactRepeat, Root: obs.Email.Root.Id}
	}
	if sub.Email == nil && obs.Phone != nil {
		return Plan{Case: CaseExactRepeat, Root: obs.Phone.Root.Id}
	}

	switch email, phone := role(obs.Email), role(obs.Phone); {
	case email == "" && phone == "":
		return Plan{Case: CaseNewPrimary, Insert: &Insertion{Precedence: model.Primary}}

	case phone == "":
		return attach(CaseEmailMatch, obs.Email.Root)

	case email == "":
		return attach(CasePhoneMatch, obs.Phone.Root)

	case email == model.Secondary && phone == model.Secondary:
		if obs.Email.Root.Id == obs.Phone.Root.Id {
			return Plan{Case: CaseSecondariesShared, Root: obs.Email.Root.Id}
		}
		return merge(CaseSecondariesSplit, obs.Email.Root, obs.Phone.Root)

	case email == model.Primary && phone == model.Primary:
		return merge(CasePrimariesMerge, obs.Email.Root, obs.Phone.Root)

	case email == model.Primary:
		return merge(CaseEmailPrimary, obs.Email.Root, obs.Phone.Root)

	default:
		return merge(CasePhonePrimary, obs.Email.Root, obs.Phone.Root)
	}
}

// attach plans a new secondary below root. The new row always links to the root, never to the
// matched secondary, so the graph stays at most two levels deep.
func attach(c Case, root model.Contact) Plan {
	linked := root.Id
	return Plan{
		Case:   c,
		Root:   root.Id,
		Insert: &Insertion{Precedence: model.Secondary, LinkedId: &linked},
	}
}

// merge plans joining the groups rooted at a and b. The senior root survives. Nothing is
// written if both already resolve to the same primary.
func merge(c Case, a, b model.Contact) Plan {
	if a.Id == b.Id {
		return Plan{Case: c, Root: a.Id}
	}
	winner, loser := a, b
	if b.OlderThan(a) {
		winner, loser = b, a
	}
	return Plan{Case: c, Root: winner.Id, Merge: &Merge{Winner: winner, Loser: loser}}
}
