// Package tokenpool implements the OAuth-authenticated account pool
// manager of SPEC_FULL.md §4.4: tiered scheduling, sticky session binding,
// round-robin fallback, token refresh, and project-id resolution.
//
// OAuth refresh mechanics and the project-id resolver are external
// collaborators (out of scope per SPEC_FULL.md §1) consumed here as narrow
// interfaces (Refresher, ProjectResolver), grounded on the real refresh-token POST
// observed in the Go corpus's antigravity adapter.
package tokenpool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/fpt/klein-cli/pkg/logger"
)

var (
	// ErrPoolExhausted is returned when no account could be selected.
	ErrPoolExhausted = errors.New("tokenpool: no available accounts")
	// ErrTokenTimeout is returned when GetToken exceeds its deadline.
	ErrTokenTimeout = errors.New("tokenpool: token acquisition timed out")
)

// tokenAcquireTimeout guards against a deadlocked pool (SPEC_FULL.md §4.4).
const tokenAcquireTimeout = 5 * time.Second

// stickyWindow is the reuse window for the last-used account absent a
// session binding (SPEC_FULL.md §4.4 step 3).
const stickyWindow = 60 * time.Second

// refreshSkew refreshes a token this long before its real expiry
// (SPEC_FULL.md §4.4, "token refresh").
const refreshSkew = 300 * time.Second

// Mode selects the scheduling policy (SPEC_FULL.md §4.4 "Scheduling
// modes").
type Mode int

const (
	ModeBalance Mode = iota
	ModePerformanceFirst
	ModeCacheFirst
)

// Refresher exchanges a refresh token for a new access token. It is an
// external collaborator — production wiring calls the real Google OAuth2
// token endpoint; tests supply a fake.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresIn int64, err error)
}

// ProjectResolver looks up the Google Cloud project id associated with an
// access token, when an account's Token.ProjectID is not yet known.
type ProjectResolver interface {
	ResolveProject(ctx context.Context, accessToken string) (projectID string, err error)
}

// Pool is the concurrency-safe account pool.
type Pool struct {
	dir       string
	refresher Refresher
	resolver  ProjectResolver
	log       *logger.Logger

	mu       sync.RWMutex
	accounts map[string]*Account
	order    []string // stable account-id ordering used for round-robin

	currentIndex atomic.Int64

	lastUsedMu sync.Mutex
	lastUsed   struct {
		accountID string
		at        time.Time
	}

	sessionsMu sync.Mutex
	sessions   map[string]string // session id -> account id

	mode Mode
}

// New constructs a Pool that loads account JSON files from dir.
func New(dir string, refresher Refresher, resolver ProjectResolver, mode Mode) *Pool {
	return &Pool{
		dir:       dir,
		refresher: refresher,
		resolver:  resolver,
		log:       logger.NewComponentLogger("tokenpool"),
		accounts:  make(map[string]*Account),
		sessions:  make(map[string]string),
		mode:      mode,
	}
}

// LoadAccounts scans the pool directory and (re)populates the in-memory
// account map, skipping any account marked disabled (SPEC_FULL.md §4.4
// "load_accounts").
func (p *Pool) LoadAccounts() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return errors.Wrap(err, "tokenpool: reading accounts dir")
	}

	accounts := make(map[string]*Account)
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(p.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			p.log.WarnWithIntention(logger.IntentionTokenPool, "skipping unreadable account file", "path", path, "err", err)
			continue
		}
		var a Account
		if err := json.Unmarshal(data, &a); err != nil {
			p.log.WarnWithIntention(logger.IntentionTokenPool, "skipping malformed account file", "path", path, "err", err)
			continue
		}
		if a.Disabled || a.ProxyDisabled {
			continue
		}
		a.path = path
		accounts[a.ID] = &a
		order = append(order, a.ID)
	}
	sort.Strings(order)

	p.mu.Lock()
	p.accounts = accounts
	p.order = order
	p.mu.Unlock()

	p.log.InfoWithIntention(logger.IntentionTokenPool, "loaded account pool", "count", len(accounts))
	return nil
}

// Selected is what GetToken hands back to a caller.
type Selected struct {
	AccountID    string
	Email        string
	AccessToken  string
	ProjectID    string
	FromSticky   bool
}

// GetToken selects an account per SPEC_FULL.md §4.4, refreshing its token
// and project id as needed, within a 5-second hard deadline.
func (p *Pool) GetToken(ctx context.Context, sessionID string, forceRotate bool, excluded map[string]bool) (Selected, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenAcquireTimeout)
	defer cancel()

	type result struct {
		sel Selected
		err error
	}
	ch := make(chan result, 1)
	go func() {
		sel, err := p.selectAndPrepare(ctx, sessionID, forceRotate, excluded)
		ch <- result{sel, err}
	}()

	select {
	case <-ctx.Done():
		return Selected{}, ErrTokenTimeout
	case r := <-ch:
		return r.sel, r.err
	}
}

func (p *Pool) selectAndPrepare(ctx context.Context, sessionID string, forceRotate bool, excluded map[string]bool) (Selected, error) {
	attempted := map[string]bool{}
	for {
		acct, fromSticky, ok := p.choose(sessionID, forceRotate, attempted, excluded)
		if !ok {
			return Selected{}, ErrPoolExhausted
		}
		attempted[acct.ID] = true

		if err := p.ensureFreshToken(ctx, acct); err != nil {
			p.log.WarnWithIntention(logger.IntentionTokenPool, "token refresh failed, trying next account", "account", acct.ID, "err", err)
			continue
		}
		if err := p.ensureProjectID(ctx, acct); err != nil {
			p.log.WarnWithIntention(logger.IntentionTokenPool, "project id resolution failed, trying next account", "account", acct.ID, "err", err)
			continue
		}

		p.recordUsage(sessionID, acct.ID, fromSticky)
		return Selected{
			AccountID:   acct.ID,
			Email:       acct.Email,
			AccessToken: acct.Token.AccessToken,
			ProjectID:   acct.Token.ProjectID,
			FromSticky:  fromSticky,
		}, nil
	}
}

// choose implements the selection order of SPEC_FULL.md §4.4: sticky
// session binding, the 60-second reuse window, then tier-ordered round
// robin. It does not consult the rate-limit ledger: an account is skipped
// only when it was already attempted in this call or is listed in
// excluded, and a session's binding is removed only by DropSession.
func (p *Pool) choose(sessionID string, forceRotate bool, attempted, excluded map[string]bool) (*Account, bool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.order) == 0 {
		return nil, false, false
	}

	tiered := make([]string, len(p.order))
	copy(tiered, p.order)
	sort.SliceStable(tiered, func(i, j int) bool {
		return p.accounts[tiered[i]].Tier() < p.accounts[tiered[j]].Tier()
	})

	eligible := func(id string) bool {
		if attempted[id] || excluded[id] {
			return false
		}
		_, ok := p.accounts[id]
		return ok
	}

	// Sticky path.
	if sessionID != "" && !forceRotate && p.mode != ModePerformanceFirst {
		p.sessionsMu.Lock()
		boundID, hasBinding := p.sessions[sessionID]
		p.sessionsMu.Unlock()
		if hasBinding && eligible(boundID) {
			return p.accounts[boundID], true, true
		}
	}

	// 60-second reuse window.
	if !forceRotate {
		p.lastUsedMu.Lock()
		lastID, lastAt := p.lastUsed.accountID, p.lastUsed.at
		p.lastUsedMu.Unlock()
		if lastID != "" && time.Since(lastAt) < stickyWindow && eligible(lastID) {
			return p.accounts[lastID], false, true
		}
	}

	// Round-robin fallback starting at currentIndex, walking tier order.
	start := int(p.currentIndex.Load())
	n := len(tiered)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		id := tiered[idx]
		if !eligible(id) {
			continue
		}
		p.currentIndex.Store(int64((idx + 1) % n))
		return p.accounts[id], false, true
	}

	return nil, false, false
}

func (p *Pool) recordUsage(sessionID, accountID string, fromSticky bool) {
	p.lastUsedMu.Lock()
	p.lastUsed.accountID = accountID
	p.lastUsed.at = time.Now()
	p.lastUsedMu.Unlock()

	if sessionID == "" || fromSticky {
		return
	}
	if p.mode == ModePerformanceFirst {
		return
	}
	p.sessionsMu.Lock()
	p.sessions[sessionID] = accountID
	p.sessionsMu.Unlock()
}

// Size returns the number of currently loaded accounts, used by the retry
// controller to bound attempts at min(MaxAttempts, pool size) (SPEC_FULL.md
// §4.5).
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// DropSession removes a session's sticky binding, called when its bound
// account becomes rate-limited (SPEC_FULL.md §3 "Session Binding").
func (p *Pool) DropSession(sessionID string) {
	p.sessionsMu.Lock()
	delete(p.sessions, sessionID)
	p.sessionsMu.Unlock()
}

// ClearAllSessions drops every sticky binding.
func (p *Pool) ClearAllSessions() {
	p.sessionsMu.Lock()
	p.sessions = make(map[string]string)
	p.sessionsMu.Unlock()
}

func (p *Pool) ensureFreshToken(ctx context.Context, acct *Account) error {
	if time.Until(acct.Token.ExpiryTimestamp) > refreshSkew {
		return nil
	}
	accessToken, expiresIn, err := p.refresher.Refresh(ctx, acct.Token.RefreshToken)
	if err != nil {
		if strings.Contains(err.Error(), "invalid_grant") {
			p.disableAccount(acct, err)
			return err
		}
		return errors.Wrap(err, "refreshing token")
	}

	p.mu.Lock()
	acct.Token.AccessToken = accessToken
	acct.Token.ExpiresIn = expiresIn
	acct.Token.ExpiryTimestamp = time.Now().Add(time.Duration(expiresIn) * time.Second)
	p.mu.Unlock()

	p.persist(acct)
	return nil
}

func (p *Pool) ensureProjectID(ctx context.Context, acct *Account) error {
	if acct.Token.ProjectID != "" {
		return nil
	}
	projectID, err := p.resolver.ResolveProject(ctx, acct.Token.AccessToken)
	if err != nil {
		return errors.Wrap(err, "resolving project id")
	}
	p.mu.Lock()
	acct.Token.ProjectID = projectID
	p.mu.Unlock()
	p.persist(acct)
	return nil
}

// disableAccount permanently marks acct disabled in memory and on disk
// (SPEC_FULL.md §4.4 "On failure whose error text contains invalid_grant").
func (p *Pool) disableAccount(acct *Account, cause error) {
	reason := cause.Error()
	if len(reason) > 800 {
		reason = reason[:800]
	}

	p.mu.Lock()
	acct.Disabled = true
	acct.DisabledAt = time.Now()
	acct.DisabledReason = reason
	delete(p.accounts, acct.ID)
	for i, id := range p.order {
		if id == acct.ID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	p.persist(acct)
	p.log.ErrorWithIntention(logger.IntentionTokenPool, "account disabled permanently", "account", acct.ID, "reason", reason)
}

// persist writes acct back to its source file as indented JSON (a no-op
// when it has no path). disableAccount calls it after evicting the account
// from the in-memory map, so the disabled state still reaches disk.
func (p *Pool) persist(acct *Account) {
	if acct.path == "" {
		return
	}
	data, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		p.log.WarnWithIntention(logger.IntentionTokenPool, "failed to marshal account for persistence", "account", acct.ID, "err", err)
		return
	}
	if err := os.WriteFile(acct.path, data, 0o600); err != nil {
		p.log.WarnWithIntention(logger.IntentionTokenPool, "failed to persist account", "account", acct.ID, "err", err)
	}
}
