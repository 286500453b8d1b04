package util

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/sigilo/go-sigilo-server/types"
	"golang.org/x/crypto/scrypt"
)

var (
	scryptN   = 32768 // N = CPU/memory cost parameter
	scryptR   = 8     // r and p must satisfy r * p < 2^30
	scryptP   = 1
	scryptLen = 32 // 32 bytes long (AES-256)
)

// GenerateRSAKeyPair generates an RSA key pair of the given modulus size and
// returns PEM encoded private and public keys.
func GenerateRSAKeyPair(bits int) ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, types.ErrKeyGeneration)
	}
	privPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDer, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, types.ErrKeyGeneration)
	}
	pubPem := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDer,
	})
	return privPem, pubPem, nil
}

// DeriveKey derives a 32 byte symmetric key from a user secret using scrypt
func DeriveKey(secret string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, scryptLen)
}

// EncryptWithSecret encrypts plaintext with AES-256-GCM under a key derived
// from secret. Returns ciphertext, salt and nonce.
func EncryptWithSecret(plaintext []byte, secret string) ([]byte, []byte, []byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, nil, err
	}
	key, err := DeriveKey(secret, salt)
	if err != nil {
		return nil, nil, nil, err
	}
	defer Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, salt, nonce, nil
}

// DecryptWithSecret reverses EncryptWithSecret. A wrong secret fails GCM
// authentication and returns ErrInvalidCredentials.
func DecryptWithSecret(ciphertext, salt, nonce []byte, secret string) ([]byte, error) {
	key, err := DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, types.ErrInvalidCredentials
	}
	return plaintext, nil
}

// SignHash signs a sha256 digest with the PEM private key. RSASSA-PKCS1-v1_5
// is deterministic per input, which the verification contract relies on.
func SignHash(privPem []byte, digest []byte) ([]byte, error) {
	block, _ := pem.Decode(privPem)
	if block == nil {
		return nil, types.ErrInvalidPrivateKey
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, types.ErrInvalidPrivateKey
	}
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest)
}

// VerifyHash verifies a signature over a sha256 digest with the PEM public
// key. Pure function, no side effects.
func VerifyHash(pubPem []byte, digest []byte, signature []byte) (bool, error) {
	pub, err := ParsePublicKey(pubPem)
	if err != nil {
		return false, err
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, signature); err != nil {
		return false, nil
	}
	return true, nil
}

func ParsePublicKey(pubPem []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pubPem)
	if block == nil {
		return nil, types.ErrInvalidPublicKey
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, types.ErrInvalidPublicKey
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, types.ErrInvalidPublicKey
	}
	return rsaPub, nil
}

// Fingerprint returns the sha256 hex of the DER public key
func Fingerprint(pubPem []byte) (string, error) {
	block, _ := pem.Decode(pubPem)
	if block == nil {
		return "", types.ErrInvalidPublicKey
	}
	sum := sha256.Sum256(block.Bytes)
	return hex.EncodeToString(sum[:]), nil
}

// Sha256Hex returns the sha256 hash of the data as a hex string
func Sha256Hex(data []byte) string {
	hash := sha256.New()
	hash.Write(data)
	sum := hash.Sum(nil)
	return hex.EncodeToString(sum)
}

// ArtifactKey returns a short content-derived storage key suffix
func ArtifactKey(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// Zero wipes sensitive byte material
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
