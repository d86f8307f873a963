package auth

import "fmt"

// Provider names the identity providers the service accepts.
const (
	ProviderGoogle = "google"
	ProviderGuest  = "guest"
)

// Account is the transport-level account reference handed back by a
// provider after sign-in.
type Account struct {
	Provider string
	// Subject is the provider's stable identifier for the account.
	Subject string
}

// Profile is the user-facing profile claims from the provider.
type Profile struct {
	Email string
	Name  string
	Image string
}

// Identity is the resolved outcome of a sign-in: what kind of user this
// is and the stable identifier to key their data by.
type Identity struct {
	Type    UserType
	Subject string
	Email   string
	Name    string
	Image   string
}

// DetermineIdentity maps a provider account plus profile to an identity.
// It is a pure decision function, separate from the HTTP callback wiring,
// so the provider branching is testable on its own.
func DetermineIdentity(account Account, profile Profile) (Identity, error) {
	switch account.Provider {
	case ProviderGuest:
		if account.Subject == "" {
			return Identity{}, fmt.Errorf("guest account missing subject")
		}
		return Identity{Type: UserTypeGuest, Subject: account.Subject, Email: profile.Email}, nil

	case ProviderGoogle:
		if profile.Email == "" {
			return Identity{}, fmt.Errorf("google account missing email")
		}
		if account.Subject == "" {
			return Identity{}, fmt.Errorf("google account missing subject")
		}
		return Identity{
			Type:    UserTypeRegular,
			Subject: account.Subject,
			Email:   profile.Email,
			Name:    profile.Name,
			Image:   profile.Image,
		}, nil

	default:
		return Identity{}, fmt.Errorf("unsupported provider %q", account.Provider)
	}
}
