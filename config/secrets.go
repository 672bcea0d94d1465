package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

const (
	defaultVaultPath   = "secret/warden"
	defaultAWSSecretID = "warden/secrets"

	// secretDocumentTTL bounds how long a fetched remote document is reused
	secretDocumentTTL = 5 * time.Minute

	// JWTSecretKey is the secret name consulted when api.auth.jwt_secret is empty
	JWTSecretKey = "api_auth_jwt_secret"
)

// SecretManager resolves named secrets
type SecretManager interface {
	GetSecret(key string) (string, error)
}

// EnvSecretManager reads WARDEN_<KEY> from the environment (default)
type EnvSecretManager struct{}

func (e *EnvSecretManager) GetSecret(key string) (string, error) {
	envKey := EnvPrefix + "_" + strings.ToUpper(key)
	value := os.Getenv(envKey)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envKey)
	}
	return value, nil
}

// documentSource loads every key of one remote secret document
type documentSource interface {
	fetch() (map[string]string, error)
	name() string
}

// DocumentSecretManager serves keys out of a remote secret document and refetches
// it once secretDocumentTTL has passed. Failed fetches are not cached.
type DocumentSecretManager struct {
	source documentSource
	now    func() time.Time

	mu        sync.Mutex
	doc       map[string]string
	fetchedAt time.Time
}

func newDocumentSecretManager(source documentSource) *DocumentSecretManager {
	return &DocumentSecretManager{source: source, now: time.Now}
}

func (d *DocumentSecretManager) GetSecret(key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil || d.now().Sub(d.fetchedAt) >= secretDocumentTTL {
		doc, err := d.source.fetch()
		if err != nil {
			return "", err
		}
		d.doc, d.fetchedAt = doc, d.now()
	}

	value, ok := d.doc[key]
	if !ok {
		return "", fmt.Errorf("key %s not found in %s", key, d.source.name())
	}
	return value, nil
}

// vaultDocument reads a KV v1 or v2 secret from HashiCorp Vault
type vaultDocument struct {
	client *api.Client
	path   string
}

// NewVaultSecretManager connects to secrets.vault.address
func NewVaultSecretManager(config *Config) (*DocumentSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: config.Secrets.Vault.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if config.Secrets.Vault.Token != "" {
		client.SetToken(config.Secrets.Vault.Token)
	} else if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	path := config.Secrets.Vault.Path
	if path == "" {
		path = defaultVaultPath
	}
	return newDocumentSecretManager(&vaultDocument{client: client, path: path}), nil
}

func (v *vaultDocument) name() string { return "vault secret " + v.path }

func (v *vaultDocument) fetch() (map[string]string, error) {
	secret, err := v.client.Logical().Read(v.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path %s", v.path)
	}

	data := secret.Data
	// KV v2 nests the values under "data"
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	doc := make(map[string]string, len(data))
	for k, raw := range data {
		if s, ok := raw.(string); ok {
			doc[k] = s
		}
	}
	return doc, nil
}

// secretsManagerAPI is the subset of the AWS client used here
type secretsManagerAPI interface {
	GetSecretValue(input *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

// awsDocument reads a JSON object secret from AWS Secrets Manager
type awsDocument struct {
	client   secretsManagerAPI
	secretID string
}

// NewAWSSecretManager opens a Secrets Manager session in secrets.aws.region
func NewAWSSecretManager(config *Config) (*DocumentSecretManager, error) {
	awsCfg := &aws.Config{Region: aws.String(config.Secrets.AWS.Region)}
	if config.Secrets.AWS.AccessKey != "" && config.Secrets.AWS.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			config.Secrets.AWS.AccessKey,
			config.Secrets.AWS.SecretKey,
			"",
		)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	secretID := config.Secrets.AWS.SecretID
	if secretID == "" {
		secretID = defaultAWSSecretID
	}
	return newDocumentSecretManager(&awsDocument{client: secretsmanager.New(sess), secretID: secretID}), nil
}

func (a *awsDocument) name() string { return "AWS secret " + a.secretID }

func (a *awsDocument) fetch() (map[string]string, error) {
	result, err := a.client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret from AWS: %w", err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("AWS secret %s has no string value", a.secretID)
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse AWS secret JSON: %w", err)
	}
	return doc, nil
}

// NewSecretManager creates the secret manager selected by secrets.provider
func NewSecretManager(config *Config) (SecretManager, error) {
	switch config.Secrets.Provider {
	case "", "env":
		return &EnvSecretManager{}, nil
	case "vault":
		return NewVaultSecretManager(config)
	case "aws":
		return NewAWSSecretManager(config)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Secrets.Provider)
	}
}

// ResolveJWTSecret returns the operator token signing key, or nil when api.auth
// is disabled. An empty api.auth.jwt_secret falls back to JWTSecretKey in secrets.
func (c *Config) ResolveJWTSecret(secrets SecretManager) ([]byte, error) {
	if !c.API.Auth.Enabled {
		return nil, nil
	}

	secret := c.API.Auth.JWTSecret
	if secret == "" {
		var err error
		if secret, err = secrets.GetSecret(JWTSecretKey); err != nil {
			return nil, fmt.Errorf("api.auth is enabled but no JWT secret is configured: %w", err)
		}
	}
	if len(secret) < minJWTSecretLength {
		return nil, fmt.Errorf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}
	return []byte(secret), nil
}
