package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/weighttracker/weighttracker/internal/config"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// ErrUnknownHashFormat is returned for stored values that are not a
// recognised hash, i.e. rows awaiting the legacy plaintext migration
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Argon2Params holds Argon2id parameter defaults
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns 64 MB memory, 3 iterations, parallelism 4
func DefaultArgon2Params() *Argon2Params {
	return NewArgon2Params(64*1024, 3, 4)
}

// NewArgon2Params creates custom Argon2id parameters
func NewArgon2Params(memory, iterations uint32, parallelism uint8) *Argon2Params {
	return &Argon2Params{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher creates password hashes with one algorithm and verifies hashes of any supported algorithm
type Hasher struct {
	algorithm  string
	bcryptCost int
	argon      *Argon2Params
}

// NewBcryptHasher hashes with bcrypt at the given cost
func NewBcryptHasher(cost int) *Hasher {
	return &Hasher{algorithm: AlgorithmBcrypt, bcryptCost: cost, argon: DefaultArgon2Params()}
}

// NewArgon2Hasher hashes with Argon2id
func NewArgon2Hasher(params *Argon2Params) *Hasher {
	if params == nil {
		params = DefaultArgon2Params()
	}
	return &Hasher{algorithm: AlgorithmArgon2id, bcryptCost: bcrypt.DefaultCost, argon: params}
}

// NewHasherFromConfig builds the hasher selected by security.password
func NewHasherFromConfig(cfg config.PasswordConfig) *Hasher {
	if cfg.Algorithm == AlgorithmArgon2id {
		return NewArgon2Hasher(NewArgon2Params(cfg.Argon2Memory, cfg.Argon2Iterations, cfg.Argon2Parallelism))
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = 12
	}
	return NewBcryptHasher(cost)
}

// Algorithm returns the algorithm new hashes are created with
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash creates a salted hash of the password
func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2(password, h.argon)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if the provided password matches the encoded hash
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to compare bcrypt hash: %w", err)
		}
		return true, nil
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2(password, encodedHash)
	}
	return false, ErrUnknownHashFormat
}

// IsHashed reports whether value looks like a hash this package produces
func IsHashed(value string) bool {
	return isBcrypt(value) || strings.HasPrefix(value, "$argon2id$")
}

func isBcrypt(value string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func hashArgon2(password string, params *Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Hash), nil
}

func verifyArgon2(password, encodedHash string) (bool, error) {
	params, salt, hash, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

// decodeArgon2 extracts the parameters, salt, and hash from an encoded Argon2id hash string
func decodeArgon2(encodedHash string) (*Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, nil, fmt.Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("unsupported version: %d", version)
	}

	var params Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode hash: %w", err)
	}
	params.KeyLength = uint32(len(hash))
	params.SaltLength = uint32(len(salt))

	return &params, salt, hash, nil
}
