package github

import (
	"encoding/json"

	"github.com/google/go-github/v57/github"
)

// The wire models are go-github's structs; the aliases keep the
// adapters readable without importing two packages named github.
type (
	Repo         = github.Repository
	Release      = github.RepositoryRelease
	ReleaseAsset = github.ReleaseAsset
	Timestamp    = github.Timestamp
	GistFilename = github.GistFilename
)

// Gist extends go-github's gist document with the fields the library
// does not yet model.
type Gist struct {
	github.Gist
	CommentsEnabled *bool             `json:"comments_enabled,omitempty"`
	Forks           []json.RawMessage `json:"forks,omitempty"`
}
