package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CredentialKind discriminates the supported credential forms.
type CredentialKind int

const (
	CredentialNone CredentialKind = iota
	CredentialToken
	CredentialUsernamePassword
)

// Credentials holds the secret material used to authenticate against
// the forge and the git transport. The zero value means
// unauthenticated. Credentials render as their kind only; the secret
// itself never appears in logs or errors.
type Credentials struct {
	Kind     CredentialKind
	Token    string
	Username string
	Password string
}

// TokenCredentials authenticate with a bearer token.
func TokenCredentials(token string) Credentials {
	return Credentials{Kind: CredentialToken, Token: token}
}

// UsernamePasswordCredentials authenticate with HTTP basic auth.
func UsernamePasswordCredentials(username, password string) Credentials {
	return Credentials{Kind: CredentialUsernamePassword, Username: username, Password: password}
}

// IsNone reports whether no credentials were configured.
func (c Credentials) IsNone() bool { return c.Kind == CredentialNone }

func (c Credentials) String() string {
	switch c.Kind {
	case CredentialToken:
		return "Token"
	case CredentialUsernamePassword:
		return "Username+Password"
	default:
		return "None"
	}
}

// UnmarshalYAML decodes the credential tag forms used in the policy
// file: `!Token "<secret>"` and
// `!UsernamePassword {username, password}`.
func (c *Credentials) UnmarshalYAML(node *yaml.Node) error {
	switch node.Tag {
	case "!Token":
		var token string
		if err := node.Decode(&token); err != nil {
			return fmt.Errorf("invalid !Token credentials: %w", err)
		}
		if token == "" {
			return ErrEmptyToken
		}
		*c = TokenCredentials(token)
		return nil
	case "!UsernamePassword":
		var up struct {
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		}
		if err := node.Decode(&up); err != nil {
			return fmt.Errorf("invalid !UsernamePassword credentials: %w", err)
		}
		if up.Username == "" {
			return ErrEmptyUsername
		}
		*c = UsernamePasswordCredentials(up.Username, up.Password)
		return nil
	case "!None", "!!null":
		*c = Credentials{}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCredentialTag, node.Tag)
	}
}
