// Package gpg verifies detached PGP signatures of downloaded assets
// against a user-supplied armored public key.
package gpg

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// Sentinel errors for signature verification.
var (
	ErrNoKeys = errors.New("no usable public keys in keyring file")
)

var armorPrefix = []byte("-----BEGIN PGP")

// VerifyDetachedFile verifies that sigPath holds a valid detached
// signature over filePath, made by one of the keys in the armored
// keyring at keyPath. Both armored (.asc) and binary (.sig) signatures
// are accepted.
func VerifyDetachedFile(keyPath, filePath, sigPath string) error {
	keyRing, err := loadKeyRing(keyPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read signed file %s: %w", filePath, err)
	}

	sigRaw, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read signature %s: %w", sigPath, err)
	}

	signature := crypto.NewPGPSignature(sigRaw)
	if bytes.HasPrefix(bytes.TrimSpace(sigRaw), armorPrefix) {
		signature, err = crypto.NewPGPSignatureFromArmored(string(sigRaw))
		if err != nil {
			return fmt.Errorf("failed to parse armored signature %s: %w", sigPath, err)
		}
	}

	message := crypto.NewPlainMessage(data)
	if err := keyRing.VerifyDetached(message, signature, crypto.GetUnixTime()); err != nil {
		return fmt.Errorf("signature %s does not verify %s: %w", sigPath, filePath, err)
	}
	return nil
}

// loadKeyRing reads one or more concatenated armored public keys.
func loadKeyRing(keyPath string) (*crypto.KeyRing, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key %s: %w", keyPath, err)
	}

	key, err := crypto.NewKeyFromArmored(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key %s: %w", keyPath, err)
	}

	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build keyring from %s: %w", keyPath, err)
	}
	if keyRing.CountEntities() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeys, keyPath)
	}
	return keyRing, nil
}
