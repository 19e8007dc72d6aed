package reconcile_test

//go:generate mockgen -source=reconciler.go -destination=mocks/mocks.go -package=mocks ContactStore,Transactor,Locker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gitlab.com/dirk.krummacker/identity-service/internal/apperror"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
	"gitlab.com/dirk.krummacker/identity-service/internal/reconcile"
	"gitlab.com/dirk.krummacker/identity-service/internal/reconcile/mocks"
)

// transactionalStore combines the store and transactor mocks into one store that supports
// transactions.
type transactionalStore struct {
	*mocks.MockContactStore
	*mocks.MockTransactor
}

type ReconcilerSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	store      *mocks.MockContactStore
	tx         *mocks.MockTransactor
	locker     *mocks.MockLocker
	released   int
	reconciler *reconcile.Reconciler
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockContactStore(s.ctrl)
	s.tx = mocks.NewMockTransactor(s.ctrl)
	s.locker = mocks.NewMockLocker(s.ctrl)
	s.released = 0
	s.reconciler = reconcile.New(
		transactionalStore{MockContactStore: s.store, MockTransactor: s.tx},
		reconcile.WithLocker(s.locker),
	)
}

func (s *ReconcilerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ReconcilerSuite) expectLock() {
	s.locker.EXPECT().Acquire(gomock.Any(), gomock.Any()).
		Return(func() { s.released++ }, nil)
}

// expectRootLock expects the primaries of a mutating submission to be locked after its
// identifiers.
func (s *ReconcilerSuite) expectRootLock(keys ...string) *gomock.Call {
	return s.locker.EXPECT().Acquire(gomock.Any(), keys).
		Return(func() { s.released++ }, nil)
}

func (s *ReconcilerSuite) expectTransaction() {
	s.tx.EXPECT().InTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(reconcile.ContactStore) error) error {
			return fn(s.store)
		})
}

func (s *ReconcilerSuite) expectLookups(byEmail, byPhone, exact *model.Contact) {
	s.expectRepeatedLookups(1, byEmail, byPhone, exact)
}

func (s *ReconcilerSuite) expectRepeatedLookups(times int, byEmail, byPhone, exact *model.Contact) {
	s.store.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(byEmail, nil).Times(times)
	s.store.EXPECT().FindByPhone(gomock.Any(), "111").Return(byPhone, nil).Times(times)
	s.store.EXPECT().FindExact(gomock.Any(), "a@x.com", "111").Return(exact, nil).Times(times)
}

func submission() reconcile.Submission {
	return reconcile.Submission{Email: ptr("a@x.com"), Phone: ptr("111")}
}

func primaryContact(id int64, email, phone *string, created time.Time) *model.Contact {
	return &model.Contact{Id: id, Email: email, Phone: phone, LinkPrecedence: model.Primary,
		CreatedAt: created, UpdatedAt: created}
}

func (s *ReconcilerSuite) TestLockKeys() {
	s.locker.EXPECT().Acquire(gomock.Any(), []string{"email:a@x.com", "phone:111"}).
		Return(func() { s.released++ }, nil)
	s.expectLookups(nil, nil, nil)
	s.expectTransaction()
	s.store.EXPECT().InsertPrimary(gomock.Any(), ptr("a@x.com"), ptr("111")).
		Return(model.Contact{Id: 1, Email: ptr("a@x.com"), Phone: ptr("111"), LinkPrecedence: model.Primary}, nil)

	trail, err := s.reconciler.Identify(context.Background(), submission())
	s.Require().NoError(err)
	s.Equal(int64(1), trail.PrimaryContactId)
	s.Equal(1, s.released)
}

func (s *ReconcilerSuite) TestLockFailure() {
	s.locker.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis: connection refused"))

	_, err := s.reconciler.Identify(context.Background(), submission())
	s.Equal(apperror.KindStore, apperror.KindOf(err))
	s.ErrorContains(err, "acquire identity lock")
}

func (s *ReconcilerSuite) TestLookupFailure() {
	failure := errors.New("connection reset by peer")
	s.expectLock()
	s.store.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(nil, failure)
	s.store.EXPECT().FindByPhone(gomock.Any(), "111").Return(nil, nil).AnyTimes()
	s.store.EXPECT().FindExact(gomock.Any(), "a@x.com", "111").Return(nil, nil).AnyTimes()

	_, err := s.reconciler.Identify(context.Background(), submission())
	s.Equal(apperror.KindStore, apperror.KindOf(err))
	s.ErrorIs(err, failure)
	s.Equal(1, s.released)
}

func (s *ReconcilerSuite) TestInsertFailure() {
	failure := errors.New("deadlock found")
	s.expectLock()
	s.expectLookups(nil, nil, nil)
	s.expectTransaction()
	s.store.EXPECT().InsertPrimary(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.Contact{}, failure)

	_, err := s.reconciler.Identify(context.Background(), submission())
	s.Equal(apperror.KindStore, apperror.KindOf(err))
	s.ErrorIs(err, failure)
	s.Equal(1, s.released)
}

// TestDemoteFailure expects that nothing is re-pointed after a failed demotion.
func (s *ReconcilerSuite) TestDemoteFailure() {
	older := primaryContact(1, ptr("a@x.com"), nil, time.Unix(100, 0))
	newer := primaryContact(2, nil, ptr("111"), time.Unix(200, 0))
	s.expectLock()
	s.expectRootLock("contact:1", "contact:2")
	s.expectRepeatedLookups(2, older, newer, nil)
	s.expectTransaction()
	s.store.EXPECT().DemoteToSecondary(gomock.Any(), int64(2), int64(1)).Return(errors.New("lock wait timeout"))

	_, err := s.reconciler.Identify(context.Background(), submission())
	s.Equal(apperror.KindStore, apperror.KindOf(err))
	s.Equal(2, s.released)
}

// TestMergeSequence expects demotion, re-pointing and the trail reads in this order and inside
// one transaction.
func (s *ReconcilerSuite) TestMergeSequence() {
	older := primaryContact(1, nil, ptr("111"), time.Unix(100, 0))
	newer := primaryContact(2, ptr("a@x.com"), nil, time.Unix(200, 0))
	demoted := *newer
	demoted.LinkPrecedence = model.Secondary
	demoted.LinkedId = ptr64(1)

	s.expectLock()
	s.expectRootLock("contact:1", "contact:2")
	s.expectRepeatedLookups(2, newer, older, nil)
	s.expectTransaction()
	gomock.InOrder(
		s.store.EXPECT().DemoteToSecondary(gomock.Any(), int64(2), int64(1)).Return(nil),
		s.store.EXPECT().RepointSecondaries(gomock.Any(), int64(2), int64(1)).Return(nil),
		s.store.EXPECT().FetchByID(gomock.Any(), int64(1)).Return(*older, nil),
		s.store.EXPECT().ListSecondariesOf(gomock.Any(), int64(1)).Return([]model.Contact{demoted}, nil),
	)

	trail, err := s.reconciler.Identify(context.Background(), submission())
	s.Require().NoError(err)
	s.Equal(model.Trail{
		PrimaryContactId:    1,
		Emails:              []string{"a@x.com"},
		PhoneNumbers:        []string{"111"},
		SecondaryContactIds: []int64{2},
	}, trail)
}

// TestPrimariesMovedWhileLocking expects the newly found primaries to be locked when the first
// look is outdated by the time the first primaries are locked.
func (s *ReconcilerSuite) TestPrimariesMovedWhileLocking() {
	older := primaryContact(1, nil, ptr("111"), time.Unix(100, 0))
	newer := primaryContact(2, ptr("a@x.com"), nil, time.Unix(200, 0))
	oldest := primaryContact(7, ptr("z@x.com"), nil, time.Unix(50, 0))
	demoted := *older
	demoted.LinkPrecedence = model.Secondary
	demoted.LinkedId = ptr64(7)

	s.expectLock()
	gomock.InOrder(
		s.store.EXPECT().FindByPhone(gomock.Any(), "111").Return(older, nil),
		s.store.EXPECT().FindByPhone(gomock.Any(), "111").Return(&demoted, nil).Times(2),
	)
	s.store.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(newer, nil).Times(3)
	s.store.EXPECT().FindExact(gomock.Any(), "a@x.com", "111").Return(nil, nil).Times(3)
	s.store.EXPECT().FetchByID(gomock.Any(), int64(7)).Return(*oldest, nil).Times(2)
	gomock.InOrder(
		s.expectRootLock("contact:1", "contact:2"),
		s.expectRootLock("contact:2", "contact:7"),
	)
	s.expectTransaction()
	gomock.InOrder(
		s.store.EXPECT().DemoteToSecondary(gomock.Any(), int64(2), int64(7)).Return(nil),
		s.store.EXPECT().RepointSecondaries(gomock.Any(), int64(2), int64(7)).Return(nil),
		s.store.EXPECT().FetchByID(gomock.Any(), int64(7)).Return(*oldest, nil),
		s.store.EXPECT().ListSecondariesOf(gomock.Any(), int64(7)).Return([]model.Contact{demoted, *newer}, nil),
	)

	trail, err := s.reconciler.Identify(context.Background(), submission())
	s.Require().NoError(err)
	s.Equal(int64(7), trail.PrimaryContactId)
	s.Equal(3, s.released)
}

// TestPrimariesKeepMoving expects a retryable store error when the primaries never settle.
func (s *ReconcilerSuite) TestPrimariesKeepMoving() {
	s.expectLock()
	var next int64 = 10
	s.store.EXPECT().FindByEmail(gomock.Any(), "a@x.com").DoAndReturn(
		func(context.Context, string) (*model.Contact, error) {
			next++
			return primaryContact(next, ptr("a@x.com"), nil, time.Unix(next, 0)), nil
		}).AnyTimes()
	s.store.EXPECT().FindByPhone(gomock.Any(), "111").
		Return(primaryContact(1, nil, ptr("111"), time.Unix(1, 0)), nil).AnyTimes()
	s.store.EXPECT().FindExact(gomock.Any(), "a@x.com", "111").Return(nil, nil).AnyTimes()
	s.locker.EXPECT().Acquire(gomock.Any(), gomock.Any()).
		Return(func() { s.released++ }, nil).AnyTimes()

	_, err := s.reconciler.Identify(context.Background(), submission())
	s.Equal(apperror.KindStore, apperror.KindOf(err))
	s.ErrorContains(err, "lock identity primaries")
}

// TestReadOnlyPlanSkipsTransaction expects no transaction for an exact repeat.
func (s *ReconcilerSuite) TestReadOnlyPlanSkipsTransaction() {
	known := primaryContact(1, ptr("a@x.com"), ptr("111"), time.Unix(100, 0))
	s.expectLock()
	s.expectLookups(known, known, known)
	s.store.EXPECT().FetchByID(gomock.Any(), int64(1)).Return(*known, nil)
	s.store.EXPECT().ListSecondariesOf(gomock.Any(), int64(1)).Return(nil, nil)

	trail, err := s.reconciler.Identify(context.Background(), submission())
	s.Require().NoError(err)
	s.Equal(int64(1), trail.PrimaryContactId)
	s.Empty(trail.SecondaryContactIds)
}

// TestMissingPrimaryWhileAssemblingTrail expects the not-found kind to survive the store layer.
func (s *ReconcilerSuite) TestMissingPrimaryWhileAssemblingTrail() {
	known := primaryContact(1, ptr("a@x.com"), ptr("111"), time.Unix(100, 0))
	s.expectLock()
	s.expectLookups(known, known, known)
	s.store.EXPECT().FetchByID(gomock.Any(), int64(1)).Return(model.Contact{}, apperror.NotFound("contact %d not found", 1))

	_, err := s.reconciler.Identify(context.Background(), submission())
	s.Equal(apperror.KindNotFound, apperror.KindOf(err))
	s.Equal(1, s.released)
}

// TestSecondaryResolvesThroughStore expects a matched secondary's primary to be fetched before
// deciding. Both sides resolve to the same primary, so nothing is written.
func (s *ReconcilerSuite) TestSecondaryResolvesThroughStore() {
	root := primaryContact(1, ptr("b@x.com"), ptr("111"), time.Unix(100, 0))
	alias := &model.Contact{Id: 2, Email: ptr("a@x.com"), Phone: ptr("222"), LinkPrecedence: model.Secondary,
		LinkedId: ptr64(1), CreatedAt: time.Unix(150, 0)}

	s.expectLock()
	s.store.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(alias, nil)
	s.store.EXPECT().FindByPhone(gomock.Any(), "111").Return(root, nil)
	s.store.EXPECT().FindExact(gomock.Any(), "a@x.com", "111").Return(nil, nil)
	s.store.EXPECT().FetchByID(gomock.Any(), int64(1)).Return(*root, nil).Times(2)
	s.store.EXPECT().ListSecondariesOf(gomock.Any(), int64(1)).Return([]model.Contact{*alias}, nil)

	trail, err := s.reconciler.Identify(context.Background(), submission())
	s.Require().NoError(err)
	s.Equal(int64(1), trail.PrimaryContactId)
	s.Equal([]string{"b@x.com", "a@x.com"}, trail.Emails)
	s.Equal([]string{"111", "222"}, trail.PhoneNumbers)
}
