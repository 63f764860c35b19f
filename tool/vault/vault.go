// Package vault implements an encrypted credential store and the vault.*
// tools over it. Secrets are AEAD-encrypted at rest in a JSON file; the key
// never leaves configuration.
package vault

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dwasnwk/oktyv/component"
	"github.com/dwasnwk/oktyv/encryption"
	apperrors "github.com/dwasnwk/oktyv/errors"
)

// Config configures the vault.
type Config struct {
	// Key is the encryption passphrase. The vault is disabled when empty.
	Key string `yaml:"key" mapstructure:"key"`
	// Path is the on-disk location of the encrypted store.
	Path string `yaml:"path" mapstructure:"path"`
	// Algorithm selects the AEAD cipher: "aes-256-gcm" or
	// "chacha20-poly1305".
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "./data/vault.json"
	}
	if c.Algorithm == "" {
		c.Algorithm = string(encryption.AlgorithmAESGCM)
	}
}

// Vault is the credential store. It implements component.Component; Start
// loads the persisted entries, writes persist eagerly.
type Vault struct {
	cfg Config
	enc encryption.Encryptor

	mu      sync.RWMutex
	entries map[string]string // name -> ciphertext
}

var _ component.Component = (*Vault)(nil)

// New creates a Vault with the configured cipher.
func New(cfg Config) (*Vault, error) {
	cfg.ApplyDefaults()
	enc, err := encryption.New(cfg.Key, encryption.Algorithm(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	return &Vault{
		cfg:     cfg,
		enc:     enc,
		entries: make(map[string]string),
	}, nil
}

// Name returns the component name used for registration.
func (v *Vault) Name() string { return "vault" }

// Start loads the persisted store, if any.
func (v *Vault) Start(_ context.Context) error {
	data, err := os.ReadFile(v.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	v.mu.Lock()
	v.entries = entries
	v.mu.Unlock()
	return nil
}

// Stop persists the store a final time.
func (v *Vault) Stop(_ context.Context) error {
	return v.persist()
}

// Health reports whether the store file location is writable.
func (v *Vault) Health(_ context.Context) component.Health {
	if err := v.persist(); err != nil {
		return component.Health{Name: "vault", Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: "vault", Status: component.StatusHealthy}
}

// Set encrypts and stores a secret.
func (v *Vault) Set(name, value string) error {
	ciphertext, err := v.enc.Encrypt(value)
	if err != nil {
		return apperrors.Internal(err)
	}

	v.mu.Lock()
	v.entries[name] = ciphertext
	v.mu.Unlock()

	return v.persist()
}

// Get decrypts and returns a secret.
func (v *Vault) Get(name string) (string, error) {
	v.mu.RLock()
	ciphertext, ok := v.entries[name]
	v.mu.RUnlock()
	if !ok {
		return "", apperrors.NotFound("credential", name)
	}

	plaintext, err := v.enc.Decrypt(ciphertext)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return plaintext, nil
}

// Delete removes a secret.
func (v *Vault) Delete(name string) error {
	v.mu.Lock()
	_, ok := v.entries[name]
	delete(v.entries, name)
	v.mu.Unlock()

	if !ok {
		return apperrors.NotFound("credential", name)
	}
	return v.persist()
}

// List returns sorted secret names. Values are never listed.
func (v *Vault) List() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.entries))
	for name := range v.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *Vault) persist() error {
	v.mu.RLock()
	data, err := json.MarshalIndent(v.entries, "", "  ")
	v.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(v.cfg.Path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(v.cfg.Path, data, 0o600)
}
