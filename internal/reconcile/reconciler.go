// Package reconcile decides whether a submitted email and phone number belong to a known
// identity and, if so, links or merges the stored contacts so that every identity group has
// exactly one primary.
package reconcile

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"gitlab.com/dirk.krummacker/identity-service/internal/apperror"
	"gitlab.com/dirk.krummacker/identity-service/internal/metrics"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// ContactStore is the persistence the reconciler needs. Lookups return a nil contact and a nil
// error when nothing matches. FetchByID reports a missing row as an apperror.KindNotFound error.
type ContactStore interface {
	FindByEmail(ctx context.Context, email string) (*model.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
	FindExact(ctx context.Context, email, phone string) (*model.Contact, error)
	InsertPrimary(ctx context.Context, email, phone *string) (model.Contact, error)
	InsertSecondary(ctx context.Context, email, phone *string, linkedId int64) (model.Contact, error)
	FetchByID(ctx context.Context, id int64) (model.Contact, error)
	ListSecondariesOf(ctx context.Context, primaryId int64) ([]model.Contact, error)
	DemoteToSecondary(ctx context.Context, id, newPrimaryId int64) error
	RepointSecondaries(ctx context.Context, oldPrimaryId, newPrimaryId int64) error
}

// Transactor is implemented by stores that can run several operations atomically. When the
// store implements it, all writes of one submission and the trail read happen in one
// transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ContactStore) error) error
}

// Locker serializes submissions that share an identifier. A mutating submission calls Acquire
// twice: first with its "email:" and "phone:" keys, then, still holding those, with the
// "contact:<id>" keys of the primaries it touches. The returned function releases all keys of
// one call.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// Submission is one observation of an identity. Blank values count as absent.
type Submission struct {
	Email *string
	Phone *string
}

// normalized trims both identifiers and drops the blank ones.
func (s Submission) normalized() Submission {
	return Submission{Email: trimmed(s.Email), Phone: trimmed(s.Phone)}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// lockKeys returns the identity lock keys for the submission.
func (s Submission) lockKeys() []string {
	var keys []string
	if s.Email != nil {
		keys = append(keys, "email:"+*s.Email)
	}
	if s.Phone != nil {
		keys = append(keys, "phone:"+*s.Phone)
	}
	return keys
}

// rootKeys returns the lock keys of the primaries an observation touches, sorted and without
// duplicates.
func rootKeys(obs Observation) []string {
	var keys []string
	for _, m := range []*Match{obs.Exact, obs.Email, obs.Phone} {
		if m != nil {
			keys = append(keys, "contact:"+strconv.FormatInt(m.Root.Id, 10))
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// maxRootAttempts bounds how often the primaries of a submission may change between locking and
// looking again before the submission is given up as retryable.
const maxRootAttempts = 5

var errRootsMoved = errors.New("identity changed while locking its primaries")

const tracerName = "gitlab.com/dirk.krummacker/identity-service/internal/reconcile"

// Reconciler runs the reconciliation flow against a ContactStore.
type Reconciler struct {
	store   ContactStore
	locker  Locker
	logger  zerolog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLocker serializes overlapping submissions through locker.
func WithLocker(locker Locker) Option {
	return func(r *Reconciler) {
		r.locker = locker
	}
}

// WithLogger sets the logger for decisions and consistency faults.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithMetrics records outcomes and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New creates a Reconciler. Without WithLocker, submissions are not serialized.
func New(store ContactStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		logger: zerolog.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Identify reconciles sub with the stored contacts and returns the trail of the identity it
// belongs to.
func (r *Reconciler) Identify(ctx context.Context, sub Submission) (model.Trail, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "reconcile.Identify")
	defer span.End()

	trail, c, err := r.identify(ctx, sub.normalized())
	if err != nil {
		kind := apperror.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		r.metrics.IncrementError(kind.String())
		if kind == apperror.KindNotFound {
			r.logger.Error().Err(err).Msg("contact graph is inconsistent")
		}
		return model.Trail{}, err
	}
	span.SetAttributes(attribute.String("identify.case", string(c)))
	r.metrics.ObserveIdentify(string(c), time.Since(start))
	return trail, nil
}

func (r *Reconciler) identify(ctx context.Context, sub Submission) (model.Trail, Case, error) {
	if sub.Email == nil && sub.Phone == nil {
		return model.Trail{}, "", apperror.Validation("Please provide email or phoneNumber")
	}

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, sub.lockKeys())
		if err != nil {
			return model.Trail{}, "", apperror.Store(err, "acquire identity lock")
		}
		defer release()
	}

	obs, err := r.observe(ctx, sub)
	if err != nil {
		return model.Trail{}, "", err
	}
	plan := Decide(obs)
	if r.locker != nil && plan.Mutates() && len(rootKeys(obs)) > 0 {
		var release func()
		obs, release, err = r.lockRoots(ctx, sub, obs)
		if err != nil {
			return model.Trail{}, "", err
		}
		defer release()
		plan = Decide(obs)
	}
	r.logger.Debug().
		Str("case", string(plan.Case)).
		Int64("root", plan.Root).
		Bool("mutates", plan.Mutates()).
		Msg("reconciliation decided")

	var trail model.Trail
	run := func(store ContactStore) error {
		var err error
		trail, err = r.apply(ctx, store, sub, plan)
		return err
	}
	if tx, ok := r.store.(Transactor); ok && plan.Mutates() {
		err = tx.InTx(ctx, run)
	} else {
		err = run(r.store)
	}
	if err != nil {
		return model.Trail{}, "", apperror.Store(err, "apply reconciliation")
	}
	return trail, plan.Case, nil
}

// observe runs the three lookups concurrently and then resolves the primaries of all matches,
// again concurrently.
func (r *Reconciler) observe(ctx context.Context, sub Submission) (Observation, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.observe")
	defer span.End()

	var exact, byEmail, byPhone *model.Contact
	g, gctx := errgroup.WithContext(ctx)
	if sub.Email != nil {
		g.Go(func() error {
			c, err := r.store.FindByEmail(gctx, *sub.Email)
			byEmail = c
			return apperror.Store(err, "find contact by email")
		})
	}
	if sub.Phone != nil {
		g.Go(func() error {
			c, err := r.store.FindByPhone(gctx, *sub.Phone)
			byPhone = c
			return apperror.Store(err, "find contact by phone")
		})
	}
	if sub.Email != nil && sub.Phone != nil {
		g.Go(func() error {
			c, err := r.store.FindExact(gctx, *sub.Email, *sub.Phone)
			exact = c
			return apperror.Store(err, "find exact contact")
		})
	}
	if err := g.Wait(); err != nil {
		return Observation{}, err
	}

	obs := Observation{Submission: sub}
	g, gctx = errgroup.WithContext(ctx)
	resolve := func(c *model.Contact, dst **Match) {
		if c == nil {
			return
		}
		g.Go(func() error {
			root, err := r.resolveRoot(gctx, r.store, *c)
			if err != nil {
				return err
			}
			*dst = &Match{Contact: *c, Root: root}
			return nil
		})
	}
	resolve(exact, &obs.Exact)
	resolve(byEmail, &obs.Email)
	resolve(byPhone, &obs.Phone)
	if err := g.Wait(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// lockRoots locks the primaries obs resolved to and looks again. Another submission with
// different identifiers may have merged one of them in the meantime; in that case the new
// primaries are locked instead. The returned observation is current for as long as the returned
// function has not been called.
func (r *Reconciler) lockRoots(ctx context.Context, sub Submission, obs Observation) (Observation, func(), error) {
	keys := rootKeys(obs)
	for range maxRootAttempts {
		release, err := r.locker.Acquire(ctx, keys)
		if err != nil {
			return Observation{}, nil, apperror.Store(err, "acquire identity lock")
		}
		fresh, err := r.observe(ctx, sub)
		if err != nil {
			release()
			return Observation{}, nil, err
		}
		current := rootKeys(fresh)
		if !slices.ContainsFunc(current, func(k string) bool { return !slices.Contains(keys, k) }) {
			return fresh, release, nil
		}
		release()
		r.logger.Debug().Strs("locked", keys).Strs("current", current).Msg("primaries moved, locking again")
		keys = current
	}
	return Observation{}, nil, apperror.Store(errRootsMoved, "lock identity primaries")
}

// resolveRoot returns the primary c belongs to.
func (r *Reconciler) resolveRoot(ctx context.Context, store ContactStore, c model.Contact) (model.Contact, error) {
	if c.IsPrimary() {
		return c, nil
	}
	if c.LinkedId == nil {
		return model.Contact{}, apperror.NotFound("secondary contact %d has no linked primary", c.Id)
	}
	root, err := store.FetchByID(ctx, *c.LinkedId)
	if err != nil {
		return model.Contact{}, apperror.Store(err, "fetch linked primary")
	}
	if !root.IsPrimary() {
		return model.Contact{}, apperror.NotFound("contact %d links to %d which is not a primary", c.Id, root.Id)
	}
	return root, nil
}

// apply performs the plan's writes and assembles the trail of the resulting primary.
func (r *Reconciler) apply(ctx context.Context, store ContactStore, sub Submission, plan Plan) (model.Trail, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.apply")
	defer span.End()

	root := plan.Root
	if ins := plan.Insert; ins != nil {
		if ins.Precedence == model.Primary {
			created, err := store.InsertPrimary(ctx, sub.Email, sub.Phone)
			if err != nil {
				return model.Trail{}, apperror.Store(err, "insert primary contact")
			}
			r.metrics.IncrementContactsCreated(string(model.Primary))
			return buildTrail(created, nil), nil
		}
		created, err := store.InsertSecondary(ctx, sub.Email, sub.Phone, *ins.LinkedId)
		if err != nil {
			return model.Trail{}, apperror.Store(err, "insert secondary contact")
		}
		r.metrics.IncrementContactsCreated(string(model.Secondary))
		r.logger.Debug().Int64("contact", created.Id).Int64("primary", *ins.LinkedId).Msg("secondary contact created")
	}

	if m := plan.Merge; m != nil {
		if err := store.DemoteToSecondary(ctx, m.Loser.Id, m.Winner.Id); err != nil {
			return model.Trail{}, apperror.Store(err, "demote primary contact")
		}
		if err := store.RepointSecondaries(ctx, m.Loser.Id, m.Winner.Id); err != nil {
			return model.Trail{}, apperror.Store(err, "repoint secondary contacts")
		}
		r.metrics.IncrementMerges()
		r.logger.Info().
			Int64("primary", m.Winner.Id).
			Int64("demoted", m.Loser.Id).
			Str("case", string(plan.Case)).
			Msg("identities merged")
	}

	primary, err := store.FetchByID(ctx, root)
	if err != nil {
		return model.Trail{}, apperror.Store(err, "fetch primary contact")
	}
	secondaries, err := store.ListSecondariesOf(ctx, root)
	if err != nil {
		return model.Trail{}, apperror.Store(err, "list secondary contacts")
	}
	return buildTrail(primary, secondaries), nil
}
