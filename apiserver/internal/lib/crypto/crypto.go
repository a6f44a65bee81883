package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/crypto/pbkdf2"
)

const envconfigPrefix = "CRYPTO"

// config represents configuration options for the secret codec
type config struct {
	TokenSecret string `envconfig:"TOKEN_SECRET" required:"true"`
}

// Key derivation parameters. These are fixed: changing any of them would
// render every previously sealed token undecryptable.
const (
	keyIterations = 100000
	keyLength     = 32
)

var keySalt = []byte("trackdle-token-key")

// partDelimiter separates the hex-encoded iv, auth tag, and ciphertext in a
// sealed token.
const partDelimiter = ":"

// ErrCiphertextMalformed represents an error wherein a sealed token did not
// have the expected iv:tag:ciphertext structure and could not even be
// considered for decryption.
type ErrCiphertextMalformed struct{}

func (e *ErrCiphertextMalformed) Error() string {
	return "The sealed token is malformed."
}

// ErrCiphertextAuthentication represents an error wherein a sealed token had
// the expected structure, but its authentication tag did not verify. This
// indicates the token was tampered with or was sealed with a different key.
type ErrCiphertextAuthentication struct{}

func (e *ErrCiphertextAuthentication) Error() string {
	return "The sealed token failed authentication."
}

// Codec seals and unseals secrets using a key derived from a configured
// secret. A given secret always derives the same key, so tokens sealed by
// one process can be unsealed by any other sharing its configuration.
type Codec struct {
	key []byte
}

// GetCodecFromEnvironment returns a Codec whose key is derived from
// environment variables.
func GetCodecFromEnvironment() (*Codec, error) {
	c := config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return nil, errors.Wrap(
			err,
			"error getting crypto configuration from environment",
		)
	}
	return NewCodec(c.TokenSecret), nil
}

// NewCodec returns a Codec whose key is derived from the provided secret
// using PBKDF2 over SHA-256.
func NewCodec(secret string) *Codec {
	return &Codec{
		key: pbkdf2.Key(
			[]byte(secret),
			keySalt,
			keyIterations,
			keyLength,
			sha256.New,
		),
	}
}

// Encrypt seals the provided plaintext with AES-256-GCM under a fresh random
// iv and returns a token of the form hex(iv):hex(tag):hex(ciphertext). Two
// calls on the same plaintext produce different tokens.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	iv := make([]byte, aead.NonceSize())
	if _, err = rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "error generating iv")
	}
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	// The AEAD appends the auth tag to the ciphertext; peel it back off so
	// the token carries it as its own part.
	tagOffset := len(sealed) - aead.Overhead()
	return strings.Join(
		[]string{
			hex.EncodeToString(iv),
			hex.EncodeToString(sealed[tagOffset:]),
			hex.EncodeToString(sealed[:tagOffset]),
		},
		partDelimiter,
	), nil
}

// Decrypt unseals a token previously produced by Encrypt. It returns an
// *ErrCiphertextMalformed if the token does not have the expected structure
// and an *ErrCiphertextAuthentication if any bit of the ciphertext or tag
// has been altered. Corrupted plaintext is never silently returned.
func (c *Codec) Decrypt(token string) (string, error) {
	parts := strings.Split(token, partDelimiter)
	if len(parts) != 3 {
		return "", &ErrCiphertextMalformed{}
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", &ErrCiphertextMalformed{}
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", &ErrCiphertextMalformed{}
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", &ErrCiphertextMalformed{}
	}
	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	if len(iv) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return "", &ErrCiphertextMalformed{}
	}
	plaintext, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", &ErrCiphertextAuthentication{}
	}
	return string(plaintext), nil
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "error constructing cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "error constructing aead")
	}
	return aead, nil
}

// NewToken returns a hex-encoded token built from byteLength
// cryptographically secure random bytes.
func NewToken(byteLength int) string {
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand is drawing from the kernel. If it fails, the process
		// has no business continuing to mint credentials.
		panic(errors.Wrap(err, "error reading from secure random source"))
	}
	return hex.EncodeToString(b)
}

// NewUUID returns a new random (v4) UUID in its canonical string form.
func NewUUID() string {
	return uuid.NewV4().String()
}
