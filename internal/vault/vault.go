package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrEncryption indicates key derivation or sealing failed, typically
	// because no machine identity could be obtained.
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption indicates a record exists but could not be opened:
	// wrong passphrase, different machine, or corruption.
	ErrDecryption = errors.New("decryption failed")
	// ErrNotConfigured indicates no key has been stored for the provider.
	ErrNotConfigured = errors.New("credential not configured")
)

const (
	pbkdf2Iterations = 100_000
	derivedKeyLen    = 32
	saltLen          = 16
	fileVersion      = 1
)

// Vault manages the encrypted credentials file.
type Vault struct {
	mu      sync.Mutex
	path    string
	machine MachineIdentifier
}

// Option customizes the vault.
type Option func(*Vault)

// WithMachineIdentifier overrides the machine identity source.
func WithMachineIdentifier(id MachineIdentifier) Option {
	return func(v *Vault) {
		if id != nil {
			v.machine = id
		}
	}
}

// New constructs a vault persisting to the given credentials file path.
func New(path string, opts ...Option) *Vault {
	v := &Vault{path: path, machine: SystemMachineID{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type record struct {
	Salt   string `json:"salt"`
	Sealed string `json:"sealed"`
}

type credentialsFile struct {
	Version int               `json:"version"`
	Records map[string]record `json:"records"`
}

// Store encrypts rawKey for the provider and persists it. The plaintext key
// is never written to disk or logged.
func (v *Vault) Store(provider, rawKey, passphrase string) error {
	provider = normalizeProvider(provider)
	if provider == "" {
		return fmt.Errorf("%w: provider required", ErrEncryption)
	}
	if rawKey == "" {
		return fmt.Errorf("%w: key must not be empty", ErrEncryption)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("%w: generate salt: %w", ErrEncryption, err)
	}

	aead, err := v.aead(salt, passphrase)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("%w: generate nonce: %w", ErrEncryption, err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(rawKey), []byte(provider))

	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.load()
	if err != nil {
		return err
	}
	file.Records[provider] = record{
		Salt:   base64.StdEncoding.EncodeToString(salt),
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	}
	return v.save(file)
}

// Retrieve decrypts and returns the provider's key. The caller must keep the
// returned value scoped to the single request that needs it.
func (v *Vault) Retrieve(provider, passphrase string) (string, error) {
	provider = normalizeProvider(provider)

	v.mu.Lock()
	file, err := v.load()
	v.mu.Unlock()
	if err != nil {
		return "", err
	}

	rec, ok := file.Records[provider]
	if !ok {
		return "", fmt.Errorf("%w: no key stored for provider %q", ErrNotConfigured, provider)
	}

	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: corrupt salt for provider %q", ErrDecryption, provider)
	}
	sealed, err := base64.StdEncoding.DecodeString(rec.Sealed)
	if err != nil {
		return "", fmt.Errorf("%w: corrupt record for provider %q", ErrDecryption, provider)
	}

	aead, err := v.aead(salt, passphrase)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("%w: truncated record for provider %q", ErrDecryption, provider)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(provider))
	if err != nil {
		return "", fmt.Errorf("%w: provider %q (wrong passphrase or different machine)", ErrDecryption, provider)
	}
	return string(plain), nil
}

// Check verifies the provider's record decrypts under the current machine
// key without returning the plaintext.
func (v *Vault) Check(provider, passphrase string) error {
	_, err := v.Retrieve(provider, passphrase)
	return err
}

// Delete removes a provider's credential. Deleting an absent record is a no-op.
func (v *Vault) Delete(provider string) error {
	provider = normalizeProvider(provider)

	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.load()
	if err != nil {
		return err
	}
	if _, ok := file.Records[provider]; !ok {
		return nil
	}
	delete(file.Records, provider)
	return v.save(file)
}

// List returns the providers with stored credentials, sorted.
func (v *Vault) List() ([]string, error) {
	v.mu.Lock()
	file, err := v.load()
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	providers := make([]string, 0, len(file.Records))
	for provider := range file.Records {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers, nil
}

func (v *Vault) aead(salt []byte, passphrase string) (cipher.AEAD, error) {
	machineID, err := v.machine.MachineID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	secret := machineID + passphrase
	key := pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	return aead, nil
}

func (v *Vault) load() (*credentialsFile, error) {
	file := &credentialsFile{Version: fileVersion, Records: map[string]record{}}
	data, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return file, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("%w: parse credentials file: %w", ErrDecryption, err)
	}
	if file.Records == nil {
		file.Records = map[string]record{}
	}
	return file, nil
}

func (v *Vault) save(file *credentialsFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
