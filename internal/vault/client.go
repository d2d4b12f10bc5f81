package vault

import (
	"context"
	"fmt"
	"sync"

	"emailbot-backend/config"

	"github.com/hashicorp/vault/api"
)

// Secret field names under the application secret path
const (
	FieldJWTSecret  = "jwt_secret"
	FieldDBPassword = "db_password"
)

// Client wraps the HashiCorp Vault client. With Vault disabled it degrades
// to an in-memory store so development setups work without a Vault server.
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]string
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]string),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]string),
		cacheEnabled: true,
	}, nil
}

// StoreSecret writes one named secret field
func (c *Client) StoreSecret(ctx context.Context, field, value string) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[field] = value
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			field: value,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(), secretData)
	if err != nil {
		return fmt.Errorf("failed to store secret in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[field] = value
		c.mu.Unlock()
	}

	return nil
}

// GetSecret reads one named secret field
func (c *Client) GetSecret(ctx context.Context, field string) (string, error) {
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[field]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return "", fmt.Errorf("secret %q not found and vault is disabled", field)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %q not found", field)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret format")
	}

	value, ok := data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %q not found", field)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[field] = value
		c.mu.Unlock()
	}

	return value, nil
}

// GetJWTSecret reads the JWT signing secret
func (c *Client) GetJWTSecret(ctx context.Context) (string, error) {
	return c.GetSecret(ctx, FieldJWTSecret)
}

// GetDatabasePassword reads the database password
func (c *Client) GetDatabasePassword(ctx context.Context) (string, error) {
	return c.GetSecret(ctx, FieldDBPassword)
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path for the application secrets
func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

// NewMockClient creates a disabled-mode client for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cache:        make(map[string]string),
		cacheEnabled: true,
	}
}
