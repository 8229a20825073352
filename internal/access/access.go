// Package access decides whether a caller may generate a report and keeps
// per-account report credits.
package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNoUser means the request carried no user identity.
	ErrNoUser = errors.New("access: missing user id")
	// ErrInactive means the account is unknown or its access is not active.
	ErrInactive = errors.New("access: account is not active")
	// ErrNoCredits means the account has used all of its report credits.
	ErrNoCredits = errors.New("access: no report credits remaining")
)

// Gate is consulted before a report is generated and charged after one
// succeeds.
type Gate interface {
	// Check reports whether userID may start a generation.
	Check(ctx context.Context, userID string) error
	// Consume charges one report to userID and returns the credits left.
	// A negative count means the gate does not meter usage.
	Consume(ctx context.Context, userID string) (int, error)
}

// Unlimited admits every caller, identified or not.
type Unlimited struct{}

func (Unlimited) Check(context.Context, string) error { return nil }

func (Unlimited) Consume(context.Context, string) (int, error) { return -1, nil }

// plans maps a billing plan to the report credits it grants.
var plans = map[string]int{
	"studio":       6,
	"pro":          20,
	"professional": 50,
}

// PlanCredits returns the credits granted by plan.
func PlanCredits(plan string) (int, bool) {
	n, ok := plans[strings.ToLower(strings.TrimSpace(plan))]
	return n, ok
}

// Plans returns the known plan names, sorted.
func Plans() []string {
	names := make([]string, 0, len(plans))
	for p := range plans {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Account seeds a Ledger entry.
type Account struct {
	ID     string
	Plan   string
	Active bool
}

type balance struct {
	active  bool
	credits int
}

// Ledger is an in-memory credit ledger. It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*balance
	notify   func(account string, remaining int)
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithNotify registers fn to receive every account's balance at seed time
// and after each charge.
func WithNotify(fn func(account string, remaining int)) LedgerOption {
	return func(l *Ledger) { l.notify = fn }
}

// NewLedger seeds a ledger with each account's plan credits. Duplicate IDs
// and unknown plans are errors.
func NewLedger(accounts []Account, opts ...LedgerOption) (*Ledger, error) {
	l := &Ledger{accounts: make(map[string]*balance, len(accounts))}
	for _, o := range opts {
		o(l)
	}
	for _, a := range accounts {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return nil, errors.New("access: account with empty id")
		}
		if _, dup := l.accounts[id]; dup {
			return nil, fmt.Errorf("access: duplicate account %q", id)
		}
		credits, ok := PlanCredits(a.Plan)
		if !ok {
			return nil, fmt.Errorf("access: account %q has unknown plan %q (known: %s)", id, a.Plan, strings.Join(Plans(), ", "))
		}
		l.accounts[id] = &balance{active: a.Active, credits: credits}
		if l.notify != nil {
			l.notify(id, credits)
		}
	}
	return l, nil
}

// Check implements Gate.
func (l *Ledger) Check(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.lookup(userID)
	return err
}

// Consume implements Gate.
func (l *Ledger) Consume(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	b, err := l.lookup(userID)
	if err != nil {
		l.mu.Unlock()
		return 0, err
	}
	b.credits--
	remaining := b.credits
	l.mu.Unlock()

	if l.notify != nil {
		l.notify(strings.TrimSpace(userID), remaining)
	}
	return remaining, nil
}

// Remaining returns the credits left for userID.
func (l *Ledger) Remaining(userID string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.accounts[strings.TrimSpace(userID)]
	if !ok {
		return 0, false
	}
	return b.credits, true
}

// lookup must be called with l.mu held.
func (l *Ledger) lookup(userID string) (*balance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoUser
	}
	b, ok := l.accounts[userID]
	if !ok || !b.active {
		return nil, ErrInactive
	}
	if b.credits <= 0 {
		return nil, ErrNoCredits
	}
	return b, nil
}
