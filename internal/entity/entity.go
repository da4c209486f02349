// Package entity defines the backup entities flowing through a
// pipeline: git repositories (and gists, which back up as git
// repositories) and downloadable files. Each entity carries a metadata
// map that projects its forge attributes into the filter language.
package entity

import (
	"strings"
	"time"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/filter"
)

// Entity is anything a backup target can materialize locally.
type Entity interface {
	filter.Filterable

	// Name is the stable identifier of the entity within its policy,
	// e.g. "owner/repo" or a gist ID.
	Name() string

	// TargetPath is the path of the entity below the policy's `to`
	// directory, using forward slashes.
	TargetPath() string
}

// Metadata maps filter property keys to values. Keys are
// case-insensitive.
type Metadata struct {
	values map[string]filter.Value
}

// Set stores a value under a key, replacing any previous value.
func (m *Metadata) Set(key string, value filter.Value) {
	if m.values == nil {
		m.values = make(map[string]filter.Value)
	}
	m.values[strings.ToLower(key)] = value
}

// Get returns the value stored under a key, or null when absent.
func (m *Metadata) Get(key string) filter.Value {
	if v, ok := m.values[strings.ToLower(key)]; ok {
		return v
	}
	return filter.Null
}

// GitRepo is a remote git repository (or gist) to be mirrored locally.
type GitRepo struct {
	name        string
	CloneURL    string
	Credentials config.Credentials
	Refspecs    []string
	Meta        Metadata
}

// NewGitRepo creates a git repository entity.
func NewGitRepo(name, cloneURL string) *GitRepo {
	return &GitRepo{name: name, CloneURL: cloneURL}
}

// WithCredentials attaches transport credentials.
func (r *GitRepo) WithCredentials(creds config.Credentials) *GitRepo {
	r.Credentials = creds
	return r
}

// WithRefspecs sets the fetch refspecs used when mirroring.
func (r *GitRepo) WithRefspecs(refspecs []string) *GitRepo {
	r.Refspecs = refspecs
	return r
}

// WithMeta stores a single filter property.
func (r *GitRepo) WithMeta(key string, value filter.Value) *GitRepo {
	r.Meta.Set(key, value)
	return r
}

func (r *GitRepo) Name() string { return r.name }

func (r *GitRepo) TargetPath() string { return r.name + ".git" }

func (r *GitRepo) Get(key string) filter.Value { return r.Meta.Get(key) }

func (r *GitRepo) String() string { return r.name + " (" + r.CloneURL + ")" }

// HTTPFile is a remote file to be downloaded, typically a release
// asset. Size is the declared size in bytes (zero when unknown); Digest
// is the remote content digest in "sha256:<hex>" form when the forge
// advertises one.
type HTTPFile struct {
	name         string
	URL          string
	Credentials  config.Credentials
	ContentType  string
	Size         int64
	Digest       string
	LastModified *time.Time
	Meta         Metadata
}

// NewHTTPFile creates a downloadable file entity. The name doubles as
// the slash-separated target path below the policy directory.
func NewHTTPFile(name, url string) *HTTPFile {
	return &HTTPFile{name: name, URL: url}
}

// WithCredentials attaches transport credentials.
func (f *HTTPFile) WithCredentials(creds config.Credentials) *HTTPFile {
	f.Credentials = creds
	return f
}

// WithContentType sets the Accept header used for the download.
func (f *HTTPFile) WithContentType(contentType string) *HTTPFile {
	f.ContentType = contentType
	return f
}

// WithSize records the declared remote size in bytes.
func (f *HTTPFile) WithSize(size int64) *HTTPFile {
	f.Size = size
	return f
}

// WithDigest records the remote content digest.
func (f *HTTPFile) WithDigest(digest string) *HTTPFile {
	f.Digest = digest
	return f
}

// WithLastModified records the remote modification time.
func (f *HTTPFile) WithLastModified(t *time.Time) *HTTPFile {
	f.LastModified = t
	return f
}

// WithMeta stores a single filter property.
func (f *HTTPFile) WithMeta(key string, value filter.Value) *HTTPFile {
	f.Meta.Set(key, value)
	return f
}

func (f *HTTPFile) Name() string { return f.name }

func (f *HTTPFile) TargetPath() string { return f.name }

func (f *HTTPFile) Get(key string) filter.Value { return f.Meta.Get(key) }

func (f *HTTPFile) String() string { return f.name }
