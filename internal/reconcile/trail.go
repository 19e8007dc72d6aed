package reconcile

import "gitlab.com/dirk.krummacker/identity-service/internal/model"

// buildTrail lists the primary's own email and phone first, followed by the values of the
// secondaries in the given order. Duplicates and missing values are skipped.
func buildTrail(primary model.Contact, secondaries []model.Contact) model.Trail {
	emails := newOrderedSet(len(secondaries) + 1)
	phones := newOrderedSet(len(secondaries) + 1)
	ids := make([]int64, 0, len(secondaries))

	emails.add(primary.Email)
	phones.add(primary.Phone)
	for _, s := range secondaries {
		emails.add(s.Email)
		phones.add(s.Phone)
		ids = append(ids, s.Id)
	}
	return model.Trail{
		PrimaryContactId:    primary.Id,
		Emails:              emails.values,
		PhoneNumbers:        phones.values,
		SecondaryContactIds: ids,
	}
}

type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet(capacity int) *orderedSet {
	return &orderedSet{
		seen:   make(map[string]struct{}, capacity),
		values: make([]string, 0, capacity),
	}
}

func (s *orderedSet) add(v *string) {
	if v == nil || *v == "" {
		return
	}
	if _, ok := s.seen[*v]; ok {
		return
	}
	s.seen[*v] = struct{}{}
	s.values = append(s.values, *v)
}
