// Package artifact materializes downloadable files locally: it streams
// a download to a temporary file while hashing it, verifies size and
// digest, and atomically renames the result into place next to a
// .sha256 sidecar recording the verified content digest.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/gpg"
	"github.com/forgevault/github-backup/internal/pipeline"
)

// SidecarSuffix is appended to an asset path to name its digest
// sidecar.
const SidecarSuffix = ".sha256"

// IntegrityError reports a downloaded file whose size or digest did
// not match the remote declaration. The partial file is already
// removed when this error surfaces.
type IntegrityError struct {
	Path   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %s", e.Path, e.Reason)
}

// Target downloads file entities below a policy's target directory.
type Target struct {
	HTTP *http.Client
	Log  *slog.Logger
}

// NewTarget creates a download target over the given HTTP client,
// which may be nil for a default without a global timeout (large
// assets can stream for a long time).
func NewTarget(httpClient *http.Client) *Target {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Target{HTTP: httpClient, Log: slog.Default()}
}

// Backup ensures a verified local copy of the file. An up-to-date copy
// is left untouched; anything else is downloaded to a temp file,
// verified, fsynced, and renamed into place before the sidecar is
// refreshed.
func (t *Target) Backup(ctx context.Context, file *entity.HTTPFile, policy *config.BackupPolicy) (pipeline.State, error) {
	path := filepath.Join(policy.To, filepath.FromSlash(file.TargetPath()))

	if Downloaded(path, file.Size, file.Digest) {
		return pipeline.StateUnchanged, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pipeline.StateSkipped, fmt.Errorf("failed to create backup directory %s: %w", filepath.Dir(path), err)
	}

	digest, size, tmp, err := t.download(ctx, file, path)
	if err != nil {
		return pipeline.StateSkipped, err
	}

	if prior, err := sidecarDigest(path); err == nil && prior == digest {
		// Same bytes as last time; keep the existing file and its
		// timestamps.
		_ = os.Remove(tmp)
		return pipeline.StateUnchanged, nil
	}

	state := pipeline.StateNew
	if _, err := os.Stat(path); err == nil {
		state = pipeline.StateUpdated
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return pipeline.StateSkipped, fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	if err := writeSidecar(path, digest); err != nil {
		return state, err
	}

	t.verifySignature(policy, path)

	t.Log.Debug("asset stored", "path", path, "size", size, "sha256", digest)
	return state, nil
}

// download streams the remote file to a temporary sibling of path and
// returns the content digest, the byte count, and the temp file name.
// The temp file is removed on every error path.
func (t *Target) download(ctx context.Context, file *entity.HTTPFile, path string) (digest string, size int64, tmpName string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to build download request for %s: %w", file.URL, err)
	}
	req.Header.Set("User-Agent", "forgevault/github-backup")
	if file.ContentType != "" {
		req.Header.Set("Accept", file.ContentType)
	}
	switch file.Credentials.Kind {
	case config.CredentialToken:
		req.Header.Set("Authorization", "Bearer "+file.Credentials.Token)
	case config.CredentialUsernamePassword:
		req.SetBasicAuth(file.Credentials.Username, file.Credentials.Password)
	}

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return "", 0, "", fmt.Errorf("download of %s failed: %w", file.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", 0, "", fmt.Errorf("download of %s returned HTTP %d", file.URL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpName = tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	hasher := sha256.New()
	size, err = io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if err != nil {
		discard()
		if ctx.Err() != nil {
			return "", 0, "", ctx.Err()
		}
		return "", 0, "", fmt.Errorf("download of %s was interrupted: %w", file.URL, err)
	}

	if file.Size > 0 && size != file.Size {
		discard()
		return "", 0, "", &IntegrityError{
			Path:   path,
			Reason: fmt.Sprintf("got %d bytes, remote declared %d", size, file.Size),
		}
	}

	digest = hex.EncodeToString(hasher.Sum(nil))
	if want, ok := digestHex(file.Digest); ok && want != digest {
		discard()
		return "", 0, "", &IntegrityError{
			Path:   path,
			Reason: fmt.Sprintf("got sha256:%s, remote declared %s", digest, file.Digest),
		}
	}

	if err := tmp.Sync(); err != nil {
		discard()
		return "", 0, "", fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, "", fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	return digest, size, tmpName, nil
}

// verifySignature checks a detached GPG signature when the policy
// names a public key and a signature file already sits beside the
// asset. Verification failures are reported but never destroy the
// downloaded data.
func (t *Target) verifySignature(policy *config.BackupPolicy, path string) {
	keyPath := policy.Property("gpg_public_key", "")
	if keyPath == "" {
		return
	}

	subject, sig := path, ""
	if strings.HasSuffix(path, ".asc") || strings.HasSuffix(path, ".sig") {
		subject, sig = strings.TrimSuffix(strings.TrimSuffix(path, ".asc"), ".sig"), path
	} else {
		for _, ext := range []string{".asc", ".sig"} {
			if _, err := os.Stat(path + ext); err == nil {
				sig = path + ext
				break
			}
		}
	}
	if sig == "" {
		return
	}
	if _, err := os.Stat(subject); err != nil {
		return
	}

	if err := gpg.VerifyDetachedFile(keyPath, subject, sig); err != nil {
		t.Log.Error("signature verification failed", "asset", subject, "signature", sig, "error", err)
		return
	}
	t.Log.Info("signature verified", "asset", subject, "signature", sig)
}

// Downloaded reports whether path already holds a verified copy of a
// remote file: the file exists, its size matches the declared size,
// a digest sidecar is present, and the sidecar agrees with the
// declared remote digest (when known). With neither a declared size
// nor a remote digest there is nothing to verify against, so the copy
// cannot be trusted and the file downloads again.
func Downloaded(path string, size int64, remoteDigest string) bool {
	if size <= 0 && remoteDigest == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if size > 0 && info.Size() != size {
		return false
	}
	recorded, err := sidecarDigest(path)
	if err != nil {
		return false
	}
	if want, ok := digestHex(remoteDigest); ok && want != recorded {
		return false
	}
	return true
}

// sidecarDigest reads the 64-hex digest recorded beside an asset.
func sidecarDigest(path string) (string, error) {
	raw, err := os.ReadFile(path + SidecarSuffix)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 || len(fields[0]) != 64 {
		return "", fmt.Errorf("malformed digest sidecar %s", path+SidecarSuffix)
	}
	return strings.ToLower(fields[0]), nil
}

// writeSidecar records the verified digest in checksum-file format:
// the hex digest, two spaces, and the asset file name. The sidecar is
// written through a temp file so readers never observe a torn digest.
func writeSidecar(path, digest string) error {
	content := digest + "  " + filepath.Base(path) + "\n"
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.sha256.tmp")
	if err != nil {
		return fmt.Errorf("failed to create digest sidecar for %s: %w", path, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write digest sidecar for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close digest sidecar for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path+SidecarSuffix); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move digest sidecar for %s into place: %w", path, err)
	}
	return nil
}

// digestHex extracts the hex digest from a remote "sha256:<hex>"
// declaration.
func digestHex(remote string) (string, bool) {
	if rest, ok := strings.CutPrefix(remote, "sha256:"); ok && len(rest) == 64 {
		return strings.ToLower(rest), true
	}
	return "", false
}
