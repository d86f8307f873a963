package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleAuthenticator runs the OAuth authorization-code flow against
// Google and fetches the signed-in user's profile.
type GoogleAuthenticator struct {
	conf        *oauth2.Config
	userinfoURL string
}

// GoogleOption configures a GoogleAuthenticator.
type GoogleOption func(*GoogleAuthenticator)

// WithUserinfoURL overrides the userinfo endpoint, mainly for tests.
func WithUserinfoURL(u string) GoogleOption {
	return func(g *GoogleAuthenticator) { g.userinfoURL = u }
}

// WithEndpoint overrides the OAuth endpoint, mainly for tests.
func WithEndpoint(e oauth2.Endpoint) GoogleOption {
	return func(g *GoogleAuthenticator) { g.conf.Endpoint = e }
}

// NewGoogleAuthenticator builds the authenticator for a client.
func NewGoogleAuthenticator(clientID, clientSecret, redirectURL string, opts ...GoogleOption) *GoogleAuthenticator {
	g := &GoogleAuthenticator{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: defaultUserinfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether client credentials are present.
func (g *GoogleAuthenticator) Configured() bool {
	return g.conf.ClientID != "" && g.conf.ClientSecret != ""
}

// LoginURL returns the consent-page URL plus the state nonce the
// callback must echo back.
func (g *GoogleAuthenticator) LoginURL() (url, state string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	state = hex.EncodeToString(b)
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline), state, nil
}

type userinfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades the authorization code for a token and resolves the
// account and profile claims from the userinfo endpoint.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (Account, Profile, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Account{}, Profile{}, fmt.Errorf("oauth code exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return Account{}, Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := g.conf.Client(ctx, token).Do(req)
	if err != nil {
		return Account{}, Profile{}, fmt.Errorf("userinfo fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Account{}, Profile{}, fmt.Errorf("userinfo fetch: status %d", resp.StatusCode)
	}

	var info userinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Account{}, Profile{}, fmt.Errorf("userinfo decode: %w", err)
	}

	account := Account{Provider: ProviderGoogle, Subject: info.Sub}
	profile := Profile{Email: info.Email, Name: info.Name, Image: info.Picture}
	return account, profile, nil
}
