package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/sigilo/go-sigilo-server/util"
)

// KeystoreService is the key custody boundary. Private key material only
// exists decrypted inside a single Sign call and is wiped before returning.
type KeystoreService struct {
	keyRepo repository.Repository
}

func NewKeystoreService(dbSelector repository.DBSelector) *KeystoreService {
	keyRepo, err := dbSelector.ChooseDB(repository.KeyPair)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	return &KeystoreService{keyRepo: keyRepo}
}

// GenerateKeyPair creates a fresh RSA key pair for the user and installs it
// atomically over any previous pair (single document per user, one PUT).
// An empty secret leaves the private key plaintext at rest, flagged on the
// record as the weaker mode.
func (ks *KeystoreService) GenerateKeyPair(userID, secret string) (*types.KeyPair, error) {
	keySize := global.Conf.Signing.KeySize
	if keySize == 0 {
		keySize = 2048
	}
	privPem, pubPem, err := util.GenerateRSAKeyPair(keySize)
	if err != nil {
		return nil, err
	}
	defer util.Zero(privPem)

	fingerprint, fpErr := util.Fingerprint(pubPem)
	if fpErr != nil {
		return nil, fpErr
	}

	kp := &types.KeyPair{
		UserID:       userID,
		Algorithm:    fmt.Sprintf("rsa-%d", keySize),
		PublicKeyPem: string(pubPem),
		Fingerprint:  fingerprint,
		Created:      time.Now().UTC().UnixMilli(),
	}
	if secret != "" {
		ciphertext, salt, nonce, encErr := util.EncryptWithSecret(privPem, secret)
		if encErr != nil {
			return nil, encErr
		}
		kp.PrivateKeyEnc = base64.StdEncoding.EncodeToString(ciphertext)
		kp.SaltBase64 = base64.StdEncoding.EncodeToString(salt)
		kp.NonceBase64 = base64.StdEncoding.EncodeToString(nonce)
		kp.Encrypted = true
	} else {
		kp.PrivateKeyEnc = base64.StdEncoding.EncodeToString(privPem)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// carry the current revision so the overwrite replaces the old pair in
	// a single revision-checked write
	existing, gErr := ks.GetKeyPair(userID)
	if gErr == nil {
		kp.UnderscoreRev = existing.UnderscoreRev
	}

	if sErr := ks.keyRepo.Save(ctx, userID, kp); sErr != nil {
		return nil, sErr
	}
	return kp, nil
}

// GetKeyPair returns the stored key pair or ErrNoKey
func (ks *KeystoreService) GetKeyPair(userID string) (*types.KeyPair, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	resp, err := ks.keyRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNoKey
		}
		return nil, err
	}
	var kp types.KeyPair
	if mErr := repository.MapToObject(resp, &kp); mErr != nil {
		return nil, mErr
	}
	return &kp, nil
}

// Sign decrypts the private key with the supplied secret and signs the
// digest. Returns the signature and the fingerprint of the producing public
// key. A wrong secret yields ErrInvalidCredentials, a missing key ErrNoKey.
func (ks *KeystoreService) Sign(userID, secret string, digest []byte) ([]byte, string, error) {
	kp, err := ks.GetKeyPair(userID)
	if err != nil {
		return nil, "", err
	}
	privPem, err := ks.unlock(kp, secret)
	if err != nil {
		return nil, "", err
	}
	defer util.Zero(privPem)

	signature, sErr := util.SignHash(privPem, digest)
	if sErr != nil {
		return nil, "", sErr
	}
	return signature, kp.Fingerprint, nil
}

// CheckSecret verifies the secret unlocks the stored private key without
// producing a signature
func (ks *KeystoreService) CheckSecret(userID, secret string) error {
	kp, err := ks.GetKeyPair(userID)
	if err != nil {
		return err
	}
	privPem, err := ks.unlock(kp, secret)
	if err != nil {
		return err
	}
	util.Zero(privPem)
	return nil
}

// Verify is a pure pass-through to the crypto primitive, no state touched
func (ks *KeystoreService) Verify(pubPem []byte, digest []byte, signature []byte) (bool, error) {
	return util.VerifyHash(pubPem, digest, signature)
}

// DeleteKeyPair irreversibly destroys the stored key material. Existing
// Signature records keep their key fingerprint and stay verifiable through
// any retained public key.
func (ks *KeystoreService) DeleteKeyPair(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := ks.keyRepo.Delete(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return types.ErrNoKey
	}
	return err
}

func (ks *KeystoreService) unlock(kp *types.KeyPair, secret string) ([]byte, error) {
	enc, dErr := base64.StdEncoding.DecodeString(kp.PrivateKeyEnc)
	if dErr != nil {
		return nil, types.ErrInvalidPrivateKey
	}
	if !kp.Encrypted {
		// a plaintext key was generated with an empty secret, any other
		// secret is wrong
		if secret != "" {
			util.Zero(enc)
			return nil, types.ErrInvalidCredentials
		}
		return enc, nil
	}
	salt, sErr := base64.StdEncoding.DecodeString(kp.SaltBase64)
	if sErr != nil {
		return nil, types.ErrInvalidPrivateKey
	}
	nonce, nErr := base64.StdEncoding.DecodeString(kp.NonceBase64)
	if nErr != nil {
		return nil, types.ErrInvalidPrivateKey
	}
	return util.DecryptWithSecret(enc, salt, nonce, secret)
}
