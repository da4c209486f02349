package github

import (
	"fmt"
	"strings"
)

// FromKind identifies the shape of a policy's `from` declaration.
type FromKind int

const (
	// FromCurrentUser targets the authenticated user ("user").
	FromCurrentUser FromKind = iota
	// FromUser targets a named user ("users/<name>").
	FromUser
	// FromOrg targets an organization ("orgs/<name>").
	FromOrg
	// FromRepo targets a single repository ("repos/<owner>/<name>").
	FromRepo
	// FromGist targets a single gist ("gists/<id>").
	FromGist
	// FromStarred targets the authenticated user's stars ("starred").
	FromStarred
)

// FromSpec is a parsed `from` declaration.
type FromSpec struct {
	Kind FromKind
	// Name is the user or org name, the "owner/name" repository
	// identifier, or the gist ID, depending on Kind.
	Name string
}

// ParseFrom parses a policy's `from` field.
func ParseFrom(from string) (FromSpec, error) {
	parts := strings.Split(from, "/")
	switch {
	case from == "user":
		return FromSpec{Kind: FromCurrentUser}, nil
	case from == "starred":
		return FromSpec{Kind: FromStarred}, nil
	case len(parts) == 2 && parts[0] == "users" && parts[1] != "":
		return FromSpec{Kind: FromUser, Name: parts[1]}, nil
	case len(parts) == 2 && parts[0] == "orgs" && parts[1] != "":
		return FromSpec{Kind: FromOrg, Name: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "repos" && parts[1] != "" && parts[2] != "":
		return FromSpec{Kind: FromRepo, Name: parts[1] + "/" + parts[2]}, nil
	case len(parts) == 2 && parts[0] == "gists" && parts[1] != "":
		return FromSpec{Kind: FromGist, Name: parts[1]}, nil
	default:
		return FromSpec{}, fmt.Errorf("%w: %q (expected 'user', 'starred', 'users/<name>', 'orgs/<name>', 'repos/<owner>/<name>', or 'gists/<id>')", ErrInvalidFrom, from)
	}
}

// Single reports whether the spec addresses exactly one entity rather
// than a paginated collection.
func (s FromSpec) Single() bool {
	return s.Kind == FromRepo || s.Kind == FromGist
}

// RepoEndpoint returns the API path listing repositories for this spec.
func (s FromSpec) RepoEndpoint() (string, error) {
	switch s.Kind {
	case FromCurrentUser:
		return "user/repos", nil
	case FromUser:
		return "users/" + s.Name + "/repos", nil
	case FromOrg:
		return "orgs/" + s.Name + "/repos", nil
	case FromRepo:
		return "repos/" + s.Name, nil
	case FromStarred:
		return "user/starred", nil
	default:
		return "", fmt.Errorf("%w: %q cannot provide repositories", ErrInvalidFrom, s.Name)
	}
}

// GistEndpoint returns the API path listing gists for this spec.
func (s FromSpec) GistEndpoint() (string, error) {
	switch s.Kind {
	case FromCurrentUser:
		return "gists", nil
	case FromUser:
		return "users/" + s.Name + "/gists", nil
	case FromGist:
		return "gists/" + s.Name, nil
	case FromStarred:
		return "gists/starred", nil
	default:
		return "", fmt.Errorf("%w: %q cannot provide gists", ErrInvalidFrom, s.Name)
	}
}

// CollectionURL joins an API base, an endpoint path, and an optional
// verbatim query string.
func CollectionURL(base, endpoint, query string) string {
	url := strings.TrimSuffix(base, "/") + "/" + endpoint
	if query != "" {
		url += "?" + query
	}
	return url
}
