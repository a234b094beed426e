// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// DefaultKeyBits is the size of the RSA keys generated for new addresses.
const DefaultKeyBits = 2048

// Set of error variables for signature verification.
var (
	ErrBadSignature = errors.New("signature does not verify")
	ErrMalformedKey = errors.New("malformed public key")
)

// =============================================================================

// Hash returns a unique string for the value. The value is marshaled into
// its canonical JSON form so every node produces the same digest.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return common.Bytes2Hex(hash[:])
}

// Sign uses the specified private key to sign the data.
func Sign(value any, privateKey *rsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	digest, err := stamp(value)
	if err != nil {
		return nil, err
	}

	sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	return sig, nil
}

// Verify checks the signature was produced over the value by the private key
// matching the specified address.
func Verify(value any, sig []byte, address string) error {
	publicKey, err := ParsePublicKey(address)
	if err != nil {
		return err
	}

	digest, err := stamp(value)
	if err != nil {
		return err
	}

	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest, sig); err != nil {
		return ErrBadSignature
	}

	return nil
}

// =============================================================================

// GenerateKey constructs a new RSA private key of the specified size.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	return privateKey, nil
}

// PublicKeyToAddress converts the public key to its address form. This is the
// body of the PKCS#1 PEM block without the envelope markers and line breaks.
func PublicKeyToAddress(publicKey *rsa.PublicKey) string {
	return base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PublicKey(publicKey))
}

// ParsePublicKey converts an address back into the public key it represents.
func ParsePublicKey(address string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(stripEnvelope(address))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}

	publicKey, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}

	return publicKey, nil
}

// PrivateKeyToString converts the private key into the string form handed to
// users, the PKCS#1 PEM body with envelope markers stripped.
func PrivateKeyToString(privateKey *rsa.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(privateKey))
}

// ParsePrivateKey converts the string form of a private key back into a key.
// Full PEM input is accepted as well.
func ParsePrivateKey(s string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(stripEnvelope(s))
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return privateKey, nil
}

// LoadKey reads a private key file written by SaveKey.
func LoadKey(path string) (*rsa.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKey(string(content))
}

// SaveKey writes the private key in its string form to the file with
// restrictive permissions.
func SaveKey(path string, privateKey *rsa.PrivateKey) error {
	return os.WriteFile(path, []byte(PrivateKeyToString(privateKey)), 0600)
}

// =============================================================================

// stamp returns the SHA-256 digest of the canonical JSON form of the value.
func stamp(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(data)
	return digest[:], nil
}

// stripEnvelope removes PEM markers and whitespace so keys copied from a PEM
// file can be used directly.
func stripEnvelope(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(line)
	}

	return strings.Join(strings.Fields(b.String()), "")
}
