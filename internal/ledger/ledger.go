// Package ledger keeps the per-user credit ledger: the rolling 24h usage
// counters that gate every metered advisor request.
//
// The ledger is a cache over analysis history. Every write keeps the row
// consistent on its own, and Resync rebuilds it from history when it drifts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"advisorgate/internal/db"
	"advisorgate/internal/usage"
)

// ErrInvalidTier is returned for a tier outside usage.Tiers.
var ErrInvalidTier = errors.New("ledger: invalid tier")

// LimitSource supplies the live limits table.
type LimitSource interface {
	Current() usage.Limits
}

// StaticLimits is a LimitSource that never changes.
type StaticLimits usage.Limits

func (s StaticLimits) Current() usage.Limits { return usage.Limits(s) }

// DefaultPendingTTL bounds how long an unconfirmed reservation survives a
// resync.
const DefaultPendingTTL = 5 * time.Minute

// Ledger reads and writes usage_ledgers rows.
type Ledger struct {
	db         *gorm.DB
	limits     LimitSource
	now        func() time.Time
	pendingTTL time.Duration
	log        zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithPendingTTL sets how long a reservation with no stored analysis is
// still counted by Resync. It should outlast the upstream timeout.
func WithPendingTTL(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.pendingTTL = d
		}
	}
}

func New(gdb *gorm.DB, limits LimitSource, opts ...Option) *Ledger {
	l := &Ledger{
		db:         gdb,
		limits:     limits,
		now:        time.Now,
		pendingTTL: DefaultPendingTTL,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("component", "ledger").Logger()
	return l
}

// Limits returns the table currently in force.
func (l *Ledger) Limits() usage.Limits {
	return l.limits.Current()
}

// Now is the ledger's clock, truncated to the precision the database keeps.
func (l *Ledger) Now() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

// Decision is the outcome of a limit check for one tier.
type Decision struct {
	Allowed   bool
	Tier      usage.Tier
	IsPremium bool
	Limit     int

	// Used is the effective count before this request.
	Used int

	// At is the ledger time the decision was taken. History rows for an
	// allowed request are stamped with it.
	At time.Time

	// WindowStart is the window the request falls into when allowed, or the
	// window that is exhausted when denied. Nil when denied with no window.
	WindowStart *time.Time

	// ResetAt is WindowStart+24h when a window exists, zero otherwise.
	ResetAt time.Time

	// UpgradeRequired is set when the plan grants no credits for the tier.
	UpgradeRequired bool
}

// Remaining is the number of requests left in the window, after this one
// when the decision is Allowed.
func (d Decision) Remaining() int {
	n := d.Limit - d.Used
	if d.Allowed {
		n--
	}
	return max(n, 0)
}

// Reservation identifies a slot taken by Reserve so it can be handed back.
type Reservation struct {
	Tier        usage.Tier
	WindowStart time.Time
}

// Reservation returns the slot an allowed decision took.
func (d Decision) Reservation() Reservation {
	r := Reservation{Tier: d.Tier}
	if d.WindowStart != nil {
		r.WindowStart = *d.WindowStart
	}
	return r
}

// Evaluate applies the window rules and the plan limit to a ledger row.
func Evaluate(now time.Time, row db.UsageLedger, tier usage.Tier, limits usage.Limits) Decision {
	limit := limits.For(tier, row.IsPremium)
	current := usage.Apply(now, row.Counter(tier).Usage())

	d := Decision{
		Tier:      tier,
		IsPremium: row.IsPremium,
		Limit:     limit,
		Used:      current.Count,
		At:        now,
	}
	if reset, ok := usage.ResetAt(current); ok {
		d.ResetAt = reset
	}

	if current.Count < limit {
		d.Allowed = true
		start := now
		if current.WindowStart != nil {
			start = *current.WindowStart
		}
		d.WindowStart = &start
		return d
	}

	d.WindowStart = current.WindowStart
	d.UpgradeRequired = limit == 0
	return d
}

// Get returns the user's row. A user with no row gets a zero ledger.
func (l *Ledger) Get(ctx context.Context, userID string) (db.UsageLedger, error) {
	var row db.UsageLedger
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.UsageLedger{UserID: userID}, nil
	}
	if err != nil {
		return db.UsageLedger{}, fmt.Errorf("load ledger: %w", err)
	}
	return row, nil
}

// CheckAndReserve reports what a request for tier would get right now
// without writing anything.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID string, tier usage.Tier) (Decision, error) {
	if !tier.Valid() {
		return Decision{}, ErrInvalidTier
	}
	row, err := l.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(l.Now(), row, tier, l.limits.Current()), nil
}

// Commit writes one tier's counter and stamps last_analysis_at, creating the
// row when needed. A zero count clears the window.
func (l *Ledger) Commit(ctx context.Context, userID string, tier usage.Tier, windowStart time.Time, newCount int) error {
	return l.setCounter(ctx, userID, tier, windowStart, newCount, true)
}

// SetCounter is Commit without the last_analysis_at stamp, for repairs that
// do not correspond to an analysis.
func (l *Ledger) SetCounter(ctx context.Context, userID string, tier usage.Tier, windowStart time.Time, newCount int) error {
	return l.setCounter(ctx, userID, tier, windowStart, newCount, false)
}

func (l *Ledger) setCounter(ctx context.Context, userID string, tier usage.Tier, windowStart time.Time, newCount int, stamp bool) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}
	if newCount < 0 {
		return fmt.Errorf("commit %s: negative count %d", tier, newCount)
	}
	now := l.Now()
	ws := windowStart.UTC()
	fields := counterFields(tier, db.CounterFrom(usage.Counter{Count: newCount, WindowStart: &ws}), false)
	fields["updated_at"] = now
	if stamp {
		fields["last_analysis_at"] = now
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, userID); err != nil {
			return err
		}
		return writeRow(tx, userID, fields)
	})
}

// Reserve checks the limit and takes a slot in one transaction. The row is
// locked for the duration, so concurrent requests for the same user are
// admitted one at a time. The slot stays pending until Record or Release.
func (l *Ledger) Reserve(ctx context.Context, userID string, tier usage.Tier) (Decision, error) {
	if !tier.Valid() {
		return Decision{}, ErrInvalidTier
	}
	now := l.Now()
	limits := l.limits.Current()

	var d Decision
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockRow(tx, userID)
		if err != nil {
			return err
		}
		d = Evaluate(now, row, tier, limits)
		if !d.Allowed {
			return nil
		}
		next := db.TierCounter{
			Count:       d.Used + 1,
			WindowStart: d.WindowStart,
			Pending:     min(l.livePending(now, *row.Counter(tier)), d.Used) + 1,
			PendingAt:   &now,
		}
		return writeRow(tx, userID, lo.Assign(counterFields(tier, next, true), map[string]any{"updated_at": now}))
	})
	if err != nil {
		return Decision{}, fmt.Errorf("reserve %s: %w", tier, err)
	}

	ev := l.log.Debug().Str("user_id", userID).Str("tier", string(tier)).
		Bool("allowed", d.Allowed).Int("used", d.Used).Int("limit", d.Limit)
	ev.Msg("reserve")
	return d, nil
}

// Release hands back a slot taken by Reserve. It does nothing when the
// tier's window has moved on since the reservation.
func (l *Ledger) Release(ctx context.Context, userID string, r Reservation) error {
	if !r.Tier.Valid() {
		return ErrInvalidTier
	}
	now := l.Now()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockRow(tx, userID)
		if err != nil {
			return err
		}
		c := *row.Counter(r.Tier)
		if c.Count == 0 || c.WindowStart == nil || !c.WindowStart.Equal(r.WindowStart) {
			return nil
		}
		next := db.CounterFrom(usage.Counter{Count: c.Count - 1, WindowStart: c.WindowStart})
		if next.Pending = min(max(l.livePending(now, c)-1, 0), next.Count); next.Pending > 0 {
			next.PendingAt = c.PendingAt
		}
		return writeRow(tx, userID, lo.Assign(counterFields(r.Tier, next, true), map[string]any{"updated_at": now}))
	})
}

// Settle stamps last_analysis_at after a completed analysis.
func (l *Ledger) Settle(ctx context.Context, userID string, at time.Time) error {
	at = at.UTC()
	return l.db.WithContext(ctx).Model(&db.UsageLedger{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"last_analysis_at": at, "updated_at": l.Now()}).Error
}

// Resync rebuilds every tier counter from the last 24h of analysis history
// plus the reservations still in flight. Counts are capped at the current
// limit and each window starts at the oldest qualifying event. Reservations
// older than the pending TTL are treated as abandoned and dropped. Running
// it twice gives the same counters.
func (l *Ledger) Resync(ctx context.Context, userID string) (db.UsageLedger, error) {
	now := l.Now()
	limits := l.limits.Current()

	var out db.UsageLedger
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockRow(tx, userID)
		if err != nil {
			return err
		}
		records, err := db.RecentRecords(tx, userID, now.Add(-usage.Window))
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		byTier := lo.GroupBy(records, func(r db.AnalysisRecord) usage.Tier { return r.Tier() })

		fields := map[string]any{"updated_at": now}
		for _, tier := range usage.Tiers {
			prev := *row.Counter(tier)
			current := usage.Apply(now, prev.Usage())
			inFlight := min(l.livePending(now, prev), current.Count)

			var start *time.Time
			if rows := byTier[tier]; len(rows) > 0 {
				first := rows[0].CreatedAt.UTC()
				start = &first
			}
			if inFlight > 0 && current.WindowStart != nil && (start == nil || current.WindowStart.Before(*start)) {
				start = current.WindowStart
			}

			counter := db.CounterFrom(usage.Counter{
				Count:       min(len(byTier[tier])+inFlight, limits.For(tier, row.IsPremium)),
				WindowStart: start,
			})
			if counter.Pending = min(inFlight, counter.Count); counter.Pending > 0 {
				counter.PendingAt = prev.PendingAt
			}
			fields = lo.Assign(fields, counterFields(tier, counter, true))
			*row.Counter(tier) = counter
		}
		row.UpdatedAt = now

		if err := writeRow(tx, userID, fields); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return db.UsageLedger{}, fmt.Errorf("resync: %w", err)
	}
	return out, nil
}

// SetPremium records the user's subscription state. A non-empty customerID
// links the Stripe customer to the user.
func (l *Ledger) SetPremium(ctx context.Context, userID string, premium bool, customerID string) error {
	updates := map[string]any{"is_premium": premium, "updated_at": l.Now()}
	if customerID != "" {
		updates["stripe_customer_id"] = customerID
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, userID); err != nil {
			return err
		}
		return tx.Model(&db.UsageLedger{}).Where("user_id = ?", userID).Updates(updates).Error
	})
}

// SetPremiumByCustomer updates the user linked to a Stripe customer. found
// is false when no user is linked yet.
func (l *Ledger) SetPremiumByCustomer(ctx context.Context, customerID string, premium bool) (userID string, found bool, err error) {
	var row db.UsageLedger
	err = l.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	err = l.db.WithContext(ctx).Model(&db.UsageLedger{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{"is_premium": premium, "updated_at": l.Now()}).Error
	return row.UserID, true, err
}

// DeleteUser removes the user's history and ledger row.
func (l *Ledger) DeleteUser(ctx context.Context, userID string) (int64, error) {
	n, err := db.DeleteUserData(l.db.WithContext(ctx), userID)
	if err != nil {
		return 0, fmt.Errorf("delete user data: %w", err)
	}
	l.log.Info().Str("user_id", userID).Int64("records", n).Msg("user data deleted")
	return n, nil
}

// Recent returns the users with any analysis since the cutoff.
func (l *Ledger) Recent(ctx context.Context, since time.Time) ([]string, error) {
	return db.ActiveUserIDs(l.db.WithContext(ctx), since.UTC())
}

// Record persists a completed analysis and confirms one pending
// reservation for its tier. CreatedAt should be the reservation time, so a
// record from a window that has since rolled over leaves the new window's
// reservations alone.
func (l *Ledger) Record(ctx context.Context, rec *db.AnalysisRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.Now()
	}
	_, startCol := db.CounterColumns(rec.Tier())
	pendingCol, _ := db.PendingColumns(rec.Tier())
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.InsertRecord(tx, rec); err != nil {
			return err
		}
		return tx.Model(&db.UsageLedger{}).
			Where("user_id = ? AND "+pendingCol+" > 0 AND "+startCol+" <= ?", rec.UserID, rec.CreatedAt.UTC()).
			UpdateColumn(pendingCol, gorm.Expr(pendingCol+" - 1")).Error
	})
}

// livePending is the part of c's pending count young enough to still be
// waiting on an upstream call.
func (l *Ledger) livePending(now time.Time, c db.TierCounter) int {
	if c.Pending <= 0 || c.PendingAt == nil || now.Sub(*c.PendingAt) > l.pendingTTL {
		return 0
	}
	return c.Pending
}

func ensureRow(tx *gorm.DB, userID string) error {
	row := db.UsageLedger{UserID: userID}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// lockRow creates the user's row if missing and reads it under a row lock.
func lockRow(tx *gorm.DB, userID string) (db.UsageLedger, error) {
	if err := ensureRow(tx, userID); err != nil {
		return db.UsageLedger{}, fmt.Errorf("create ledger row: %w", err)
	}
	var row db.UsageLedger
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&row).Error
	if err != nil {
		return db.UsageLedger{}, fmt.Errorf("lock ledger row: %w", err)
	}
	return row, nil
}

// counterFields maps c onto tier's columns. withPending adds the in-flight
// reservation columns.
func counterFields(tier usage.Tier, c db.TierCounter, withPending bool) map[string]any {
	countCol, startCol := db.CounterColumns(tier)
	fields := map[string]any{countCol: c.Count, startCol: c.WindowStart}
	if withPending {
		pendingCol, pendingAtCol := db.PendingColumns(tier)
		fields[pendingCol] = c.Pending
		fields[pendingAtCol] = c.PendingAt
	}
	return fields
}

func writeRow(tx *gorm.DB, userID string, fields map[string]any) error {
	return tx.Model(&db.UsageLedger{}).Where("user_id = ?", userID).Updates(fields).Error
}
