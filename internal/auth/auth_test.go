package auth

import (
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndValidateSession(t *testing.T) {
	store := newTestStore(t)

	user := User{ID: "u1", Type: UserTypeRegular, Email: "alice@example.com"}
	sess, token, err := store.CreateSession(user)
	if err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	if token == "" || sess.ID == "" {
		t.Fatal("expected token and session id")
	}

	got, err := store.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got.User.ID != "u1" || got.User.Type != UserTypeRegular {
		t.Errorf("session user = %+v", got.User)
	}

	if _, err := store.Validate("bogus"); err == nil {
		t.Error("expected error for unknown token")
	}
	if _, err := store.Validate(""); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestRevoke(t *testing.T) {
	store := newTestStore(t)

	_, token, err := store.CreateSession(User{ID: "u1", Type: UserTypeRegular})
	if err != nil {
		t.Fatal(err)
	}

	store.Revoke(token)
	if _, err := store.Validate(token); err == nil {
		t.Error("expected validation to fail after revoke")
	}

	// Revoking twice must not panic.
	store.Revoke(token)
}

func TestCreateGuestSession(t *testing.T) {
	store := newTestStore(t)

	sess, token, err := store.CreateGuestSession()
	if err != nil {
		t.Fatalf("CreateGuestSession() error: %v", err)
	}
	if !sess.User.IsGuest() {
		t.Error("guest session must carry a guest user")
	}
	if !strings.HasPrefix(sess.User.Email, "guest-") {
		t.Errorf("guest email = %q", sess.User.Email)
	}

	if _, err := store.Validate(token); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestUpsertUserIsStableAcrossSignIns(t *testing.T) {
	store := newTestStore(t)

	first := store.UpsertUser("alice@example.com", "Alice", "")
	second := store.UpsertUser("alice@example.com", "Alice Cooper", "pic.png")

	if first.ID != second.ID {
		t.Error("repeat sign-in must resolve to the same user")
	}
	if second.Type != UserTypeRegular {
		t.Errorf("user type = %q", second.Type)
	}
}

func TestDetermineIdentity(t *testing.T) {
	tests := []struct {
		name     string
		account  Account
		profile  Profile
		wantType UserType
		wantErr  bool
	}{
		{
			name:     "google regular",
			account:  Account{Provider: ProviderGoogle, Subject: "sub-1"},
			profile:  Profile{Email: "alice@example.com", Name: "Alice"},
			wantType: UserTypeRegular,
		},
		{
			name:    "google without email",
			account: Account{Provider: ProviderGoogle, Subject: "sub-1"},
			wantErr: true,
		},
		{
			name:    "google without subject",
			account: Account{Provider: ProviderGoogle},
			profile: Profile{Email: "alice@example.com"},
			wantErr: true,
		},
		{
			name:     "guest",
			account:  Account{Provider: ProviderGuest, Subject: "g-1"},
			wantType: UserTypeGuest,
		},
		{
			name:    "guest without subject",
			account: Account{Provider: ProviderGuest},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			account: Account{Provider: "github", Subject: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := DetermineIdentity(tt.account, tt.profile)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetermineIdentity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if id.Type != tt.wantType {
				t.Errorf("type = %q, want %q", id.Type, tt.wantType)
			}
			if id.Subject != tt.account.Subject {
				t.Errorf("subject = %q", id.Subject)
			}
		})
	}
}

func TestGoogleAuthenticatorLoginURL(t *testing.T) {
	g := NewGoogleAuthenticator("client-id", "secret", "http://localhost/cb")

	if !g.Configured() {
		t.Fatal("expected configured authenticator")
	}

	url, state, err := g.LoginURL()
	if err != nil {
		t.Fatalf("LoginURL() error: %v", err)
	}
	if state == "" {
		t.Error("expected state nonce")
	}
	for _, want := range []string{"client_id=client-id", "state=" + state, "redirect_uri="} {
		if !strings.Contains(url, want) {
			t.Errorf("login url %q missing %q", url, want)
		}
	}

	unset := NewGoogleAuthenticator("", "", "")
	if unset.Configured() {
		t.Error("blank credentials must not report configured")
	}
}
