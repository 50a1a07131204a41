// Package quota tracks per-user identity and download allowances.
//
// Accounts live in a single JSON document rewritten in full on every
// mutation. Usage is derived from an append-only log of download events,
// summed over the current calendar day and calendar month. All
// read-modify-write sequences run under one mutex, and quota check plus
// provisional debit happen atomically inside Reserve so concurrent requests
// can never overshoot a limit between check and commit.
package quota

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username is unknown so a failed
// login takes the same shape whether or not the account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UsageEvent describes a committed download for downstream consumers.
type UsageEvent struct {
	Username      string    `json:"username"`
	NumFiles      int       `json:"num_files"`
	ReservationID string    `json:"reservation_id"`
	At            time.Time `json:"at"`
}

// Recorder receives usage events after a successful commit. Publishing is
// best-effort; a recorder failure never fails the commit.
type Recorder interface {
	RecordUsage(ctx context.Context, ev UsageEvent) error
}

// Ledger is the single writer of the user store.
type Ledger struct {
	mu       sync.Mutex
	store    *store
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder Recorder

	// pending holds reservations that have been checked and debited but not
	// yet committed to the download log. Held in memory only: a crash drops
	// the reservation, which errs on the side of the user.
	pending map[string]pendingReservation
}

type pendingReservation struct {
	username string
	numFiles int
	at       time.Time
}

// Option configures optional Ledger collaborators.
type Option func(*Ledger)

// WithClock replaces the time source, used by tests to pin quota windows.
func WithClock(c clockwork.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithRecorder attaches a usage-event sink invoked on commit.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) {
		l.recorder = r
	}
}

// Open loads (or creates) the user store at path.
func Open(path string, logger *slog.Logger, opts ...Option) (*Ledger, error) {
	s, err := openStore(path)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:   s,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		pending: map[string]pendingReservation{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Register creates an account with a bcrypt-hashed credential and an empty
// download log. Returns ErrUserExists if the username is taken.
func (l *Ledger) Register(username, password, email string, dailyLimit, monthlyLimit int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.store.users[username]; ok {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	l.store.users[username] = &User{
		PasswordHash: Hash(hash),
		Email:        email,
		DailyLimit:   dailyLimit,
		MonthlyLimit: monthlyLimit,
		IsActive:     true,
		CreatedAt:    l.clock.Now().Format(time.RFC3339),
		Downloads:    []DownloadRecord{},
	}
	return l.store.save()
}

// Authenticate verifies a username/password pair.
func (l *Ledger) Authenticate(username, password string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.store.users[username]
	if !ok {
		// Burn a comparison anyway so unknown users cost the same as bad
		// passwords.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IsActive reports whether the account exists and is active.
func (l *Ledger) IsActive(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.store.users[username]
	return ok && u.IsActive
}

// usageLocked sums committed records and pending reservations that fall in
// the current calendar day and month. Caller holds the mutex.
func (l *Ledger) usageLocked(username string, u *User) (daily, monthly int) {
	now := l.clock.Now()
	count := func(at time.Time, n int) {
		at = at.In(now.Location())
		if at.Year() != now.Year() || at.Month() != now.Month() {
			return
		}
		monthly += n
		if at.Day() == now.Day() {
			daily += n
		}
	}

	for _, rec := range u.Downloads {
		count(rec.Time(), rec.NumFiles)
	}
	for _, p := range l.pending {
		if p.username == username {
			count(p.at, p.numFiles)
		}
	}
	return daily, monthly
}

// checkLocked verifies both quota windows for n more files. Caller holds the
// mutex.
func (l *Ledger) checkLocked(username string, n int) (*User, error) {
	u, ok := l.store.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	if !u.IsActive {
		return nil, ErrInactive
	}

	daily, monthly := l.usageLocked(username, u)
	if daily+n > u.DailyLimit {
		return nil, &DailyExceededError{Used: daily, Limit: u.DailyLimit, Remaining: u.DailyLimit - daily}
	}
	if monthly+n > u.MonthlyLimit {
		return nil, &MonthlyExceededError{Used: monthly, Limit: u.MonthlyLimit, Remaining: u.MonthlyLimit - monthly}
	}
	return u, nil
}

// CanDownload reports whether the user may download n more files right now.
// It is advisory only; Reserve is the operation that actually holds quota.
func (l *Ledger) CanDownload(username string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.checkLocked(username, n)
	return err
}

// Reserve atomically checks both quota windows and debits n files. The
// reservation counts against the user until it is committed or rolled back.
func (l *Ledger) Reserve(username string, n int) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.checkLocked(username, n); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	l.pending[id] = pendingReservation{username: username, numFiles: n, at: l.clock.Now()}

	return &Reservation{ledger: l, id: id, username: username, numFiles: n}, nil
}

// RecordDownload appends a download event unconditionally. Callers are
// expected to have checked quota first; prefer Reserve for new code.
func (l *Ledger) RecordDownload(username string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(username, n)
}

func (l *Ledger) appendLocked(username string, n int) error {
	u, ok := l.store.users[username]
	if !ok {
		return ErrNotFound
	}
	u.Downloads = append(u.Downloads, DownloadRecord{
		Date:     l.clock.Now().Format(time.RFC3339),
		NumFiles: n,
	})
	return l.store.save()
}

// Reservation is a provisional quota debit returned by Reserve.
type Reservation struct {
	ledger   *Ledger
	id       string
	username string
	numFiles int
	settled  bool
}

// ID returns the reservation identifier carried on usage events.
func (r *Reservation) ID() string { return r.id }

// Commit settles the reservation, recording actual successfully downloaded
// files (which may be fewer than reserved). Committing zero files releases
// the reservation without writing a download event.
func (r *Reservation) Commit(ctx context.Context, actual int) error {
	r.ledger.mu.Lock()
	if r.settled {
		r.ledger.mu.Unlock()
		return ErrReservationSettled
	}
	r.settled = true
	delete(r.ledger.pending, r.id)

	var err error
	if actual > 0 {
		err = r.ledger.appendLocked(r.username, actual)
	}
	recorder := r.ledger.recorder
	at := r.ledger.clock.Now()
	r.ledger.mu.Unlock()

	if err != nil {
		return err
	}

	if recorder != nil && actual > 0 {
		ev := UsageEvent{Username: r.username, NumFiles: actual, ReservationID: r.id, At: at}
		if rerr := recorder.RecordUsage(ctx, ev); rerr != nil {
			r.ledger.logger.Warn("usage event publish failed", "user", r.username, "error", rerr)
		}
	}
	return nil
}

// Rollback releases the reservation without recording usage.
func (r *Reservation) Rollback() {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if r.settled {
		return
	}
	r.settled = true
	delete(r.ledger.pending, r.id)
}

// SetLimits updates either limit; nil leaves the current value. Reports
// whether the user exists.
func (l *Ledger) SetLimits(username string, daily, monthly *int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.store.users[username]
	if !ok {
		return false
	}
	if daily != nil {
		u.DailyLimit = *daily
	}
	if monthly != nil {
		u.MonthlyLimit = *monthly
	}
	l.saveOrLog()
	return true
}

// SetTier assigns a subscription tier, overwriting the user's limits with the
// tier's plan.
func (l *Ledger) SetTier(username string, t Tier) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.store.users[username]
	if !ok {
		return false
	}
	plan := t.Plan()
	u.Tier = t
	u.DailyLimit = plan.DailyLimit
	u.MonthlyLimit = plan.MonthlyLimit
	l.saveOrLog()
	return true
}

// Activate enables the account. Idempotent; reports existence.
func (l *Ledger) Activate(username string) bool {
	return l.setActive(username, true)
}

// Deactivate disables the account. Idempotent; reports existence.
func (l *Ledger) Deactivate(username string) bool {
	return l.setActive(username, false)
}

func (l *Ledger) setActive(username string, active bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.store.users[username]
	if !ok {
		return false
	}
	u.IsActive = active
	l.saveOrLog()
	return true
}

func (l *Ledger) saveOrLog() {
	if err := l.store.save(); err != nil {
		l.logger.Error("user store save failed", "error", err)
	}
}

// UserInfo is a point-in-time account summary for the admin CLI and the
// usage endpoint.
type UserInfo struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Tier             Tier   `json:"tier,omitempty"`
	DailyLimit       int    `json:"daily_limit"`
	MonthlyLimit     int    `json:"monthly_limit"`
	DailyUsed        int    `json:"daily_used"`
	MonthlyUsed      int    `json:"monthly_used"`
	DailyRemaining   int    `json:"daily_remaining"`
	MonthlyRemaining int    `json:"monthly_remaining"`
	IsActive         bool   `json:"is_active"`
	CreatedAt        string `json:"created_at"`
	TotalDownloads   int    `json:"total_downloads"`
}

// Info returns the account summary, reporting existence.
func (l *Ledger) Info(username string) (UserInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.store.users[username]
	if !ok {
		return UserInfo{}, false
	}
	return l.infoLocked(username, u), true
}

// ListUsers returns summaries for every account, sorted by username.
func (l *Ledger) ListUsers() []UserInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	infos := make([]UserInfo, 0, len(l.store.users))
	for name, u := range l.store.users {
		infos = append(infos, l.infoLocked(name, u))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Username < infos[j].Username })
	return infos
}

func (l *Ledger) infoLocked(username string, u *User) UserInfo {
	daily, monthly := l.usageLocked(username, u)
	total := 0
	for _, rec := range u.Downloads {
		total += rec.NumFiles
	}
	return UserInfo{
		Username:         username,
		Email:            u.Email,
		Tier:             u.Tier,
		DailyLimit:       u.DailyLimit,
		MonthlyLimit:     u.MonthlyLimit,
		DailyUsed:        daily,
		MonthlyUsed:      monthly,
		DailyRemaining:   u.DailyLimit - daily,
		MonthlyRemaining: u.MonthlyLimit - monthly,
		IsActive:         u.IsActive,
		CreatedAt:        u.CreatedAt,
		TotalDownloads:   total,
	}
}
