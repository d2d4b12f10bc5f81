package vault

import (
	"context"
	"testing"

	"emailbot-backend/config"
)

func TestDisabledClientStoresInMemory(t *testing.T) {
	client, err := NewClient(config.VaultConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.IsEnabled() {
		t.Fatal("disabled client reports enabled")
	}

	ctx := context.Background()
	if err := client.StoreSecret(ctx, FieldJWTSecret, "signing-key"); err != nil {
		t.Fatalf("StoreSecret() error = %v", err)
	}

	secret, err := client.GetJWTSecret(ctx)
	if err != nil {
		t.Fatalf("GetJWTSecret() error = %v", err)
	}
	if secret != "signing-key" {
		t.Errorf("GetJWTSecret() = %q, want %q", secret, "signing-key")
	}

	if _, err := client.GetDatabasePassword(ctx); err == nil {
		t.Error("GetDatabasePassword() succeeded for a field never stored")
	}
}

func TestDisabledClientClearCache(t *testing.T) {
	client := NewMockClient()

	ctx := context.Background()
	if err := client.StoreSecret(ctx, FieldDBPassword, "hunter2"); err != nil {
		t.Fatalf("StoreSecret() error = %v", err)
	}

	client.ClearCache()

	// With Vault disabled the cache is the only store, so the secret is gone
	if _, err := client.GetSecret(ctx, FieldDBPassword); err == nil {
		t.Error("GetSecret() succeeded after ClearCache()")
	}
}

func TestDisabledClientCacheToggle(t *testing.T) {
	client := NewMockClient()

	ctx := context.Background()
	if err := client.StoreSecret(ctx, FieldJWTSecret, "signing-key"); err != nil {
		t.Fatalf("StoreSecret() error = %v", err)
	}

	// Disabling the cache removes the only read path of a disabled client
	client.SetCacheEnabled(false)
	if _, err := client.GetSecret(ctx, FieldJWTSecret); err == nil {
		t.Error("GetSecret() served a value with the cache disabled and vault off")
	}

	client.SetCacheEnabled(true)
	secret, err := client.GetSecret(ctx, FieldJWTSecret)
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if secret != "signing-key" {
		t.Errorf("GetSecret() = %q, want %q", secret, "signing-key")
	}
}

func TestDisabledClientHealth(t *testing.T) {
	client := NewMockClient()

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v, want nil for disabled vault", err)
	}
}
