package vault

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/dwasnwk/oktyv/errors"
)

func newTestVault(t *testing.T, key string) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.json")
	v, err := New(Config{Key: key, Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v, path
}

func TestSetGetRoundTrip(t *testing.T) {
	v, _ := newTestVault(t, "test-key")

	if err := v.Set("api_token", "s3cret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := v.Get("api_token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("expected s3cret, got %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	v, _ := newTestVault(t, "test-key")

	_, err := v.Get("absent")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	v, _ := newTestVault(t, "test-key")

	_ = v.Set("b", "2")
	_ = v.Set("a", "1")
	if !reflect.DeepEqual(v.List(), []string{"a", "b"}) {
		t.Fatalf("expected sorted names, got %v", v.List())
	}

	if err := v.Delete("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(v.List(), []string{"b"}) {
		t.Fatalf("expected [b], got %v", v.List())
	}
	if err := v.Delete("a"); err == nil {
		t.Fatal("expected error deleting missing credential")
	}
}

func TestValuesEncryptedAtRest(t *testing.T) {
	v, path := newTestVault(t, "test-key")

	if err := v.Set("token", "plaintext-value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), "plaintext-value") {
		t.Fatal("secret stored unencrypted")
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	v, path := newTestVault(t, "test-key")
	if err := v.Set("token", "value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := New(Config{Key: "test-key", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reopened.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := reopened.Get("token")
	if err != nil || got != "value" {
		t.Fatalf("expected value after restart, got %q %v", got, err)
	}
}

func TestWrongKeyFailsDecrypt(t *testing.T) {
	v, path := newTestVault(t, "right-key")
	if err := v.Set("token", "value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other, err := New(Config{Key: "wrong-key", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := other.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := other.Get("token"); err == nil {
		t.Fatal("expected decrypt failure with wrong key")
	}
}
