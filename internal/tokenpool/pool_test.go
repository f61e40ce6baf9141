package tokenpool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeRefresher struct {
	accessToken string
	expiresIn   int64
	err         error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.accessToken, f.expiresIn, nil
}

type fakeResolver struct {
	projectID string
	err       error
}

func (f *fakeResolver) ResolveProject(ctx context.Context, accessToken string) (string, error) {
	return f.projectID, f.err
}

func writeAccount(t *testing.T, dir, id string, tier string, expiry time.Time) {
	t.Helper()
	a := Account{
		ID:               id,
		Email:            id + "@example.com",
		SubscriptionTier: tier,
		Token: Token{
			AccessToken:     "stale-" + id,
			RefreshToken:    "refresh-" + id,
			ExpiryTimestamp: expiry,
			ProjectID:       "proj-" + id,
		},
	}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAccountsSkipsDisabled(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "acct-a", "PRO", time.Now().Add(time.Hour))

	disabled := Account{ID: "acct-b", Disabled: true}
	data, _ := json.Marshal(disabled)
	os.WriteFile(filepath.Join(dir, "acct-b.json"), data, 0o600)

	p := New(dir, &fakeRefresher{}, &fakeResolver{}, ModeBalance)
	if err := p.LoadAccounts(); err != nil {
		t.Fatal(err)
	}
	if len(p.accounts) != 1 {
		t.Fatalf("loaded %d accounts, want 1 (disabled account should be skipped)", len(p.accounts))
	}
	if _, ok := p.accounts["acct-a"]; !ok {
		t.Error("expected acct-a to be loaded")
	}
}

func TestGetTokenRefreshesExpiringToken(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "acct-a", "PRO", time.Now().Add(10*time.Second)) // within refreshSkew

	p := New(dir, &fakeRefresher{accessToken: "fresh-token", expiresIn: 3600}, &fakeResolver{}, ModeBalance)
	if err := p.LoadAccounts(); err != nil {
		t.Fatal(err)
	}

	sel, err := p.GetToken(context.Background(), "", false, nil)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if sel.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want refreshed token", sel.AccessToken)
	}
}

func TestGetTokenStickySession(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "acct-a", "PRO", time.Now().Add(time.Hour))
	writeAccount(t, dir, "acct-b", "PRO", time.Now().Add(time.Hour))

	p := New(dir, &fakeRefresher{}, &fakeResolver{}, ModeBalance)
	if err := p.LoadAccounts(); err != nil {
		t.Fatal(err)
	}

	first, err := p.GetToken(context.Background(), "session-1", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.GetToken(context.Background(), "session-1", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.AccountID != second.AccountID {
		t.Errorf("sticky session returned different accounts: %q then %q", first.AccountID, second.AccountID)
	}
}

func TestGetTokenRotatesOnForceRotate(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "acct-a", "PRO", time.Now().Add(time.Hour))
	writeAccount(t, dir, "acct-b", "PRO", time.Now().Add(time.Hour))

	p := New(dir, &fakeRefresher{}, &fakeResolver{}, ModeBalance)
	if err := p.LoadAccounts(); err != nil {
		t.Fatal(err)
	}

	first, err := p.GetToken(context.Background(), "session-1", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.GetToken(context.Background(), "session-1", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.AccountID == second.AccountID {
		t.Errorf("forceRotate returned the same account %q twice", first.AccountID)
	}
}

func TestGetTokenExhaustedPool(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, &fakeRefresher{}, &fakeResolver{}, ModeBalance)
	if err := p.LoadAccounts(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetToken(context.Background(), "", false, nil); err != ErrPoolExhausted {
		t.Errorf("GetToken() error = %v, want ErrPoolExhausted", err)
	}
}

func TestInvalidGrantDisablesAccount(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "acct-a", "PRO", time.Now().Add(10*time.Second))

	p := New(dir, &fakeRefresher{err: errInvalidGrant{}}, &fakeResolver{}, ModeBalance)
	if err := p.LoadAccounts(); err != nil {
		t.Fatal(err)
	}

	if _, err := p.GetToken(context.Background(), "", false, nil); err != ErrPoolExhausted {
		t.Errorf("GetToken() error = %v, want ErrPoolExhausted after disabling only account", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "acct-a.json"))
	if err != nil {
		t.Fatal(err)
	}
	var persisted Account
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatal(err)
	}
	if !persisted.Disabled {
		t.Error("expected account to be persisted as disabled")
	}
}

type errInvalidGrant struct{}

func (errInvalidGrant) Error() string { return "oauth2: cannot fetch token: invalid_grant" }
