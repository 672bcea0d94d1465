package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSecretManager_GetSecret(t *testing.T) {
	manager := &EnvSecretManager{}
	t.Setenv("WARDEN_WEBHOOK_TOKEN", "tok_123")

	value, err := manager.GetSecret("webhook_token")
	require.NoError(t, err)
	assert.Equal(t, "tok_123", value)
}

func TestEnvSecretManager_MissingSecret(t *testing.T) {
	manager := &EnvSecretManager{}

	_, err := manager.GetSecret("definitely_not_set_anywhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WARDEN_DEFINITELY_NOT_SET_ANYWHERE")
}

func TestNewSecretManager(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "default provider", provider: "", wantErr: false},
		{name: "env provider", provider: "env", wantErr: false},
		{name: "unsupported provider", provider: "gcp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Secrets.Provider = tt.provider

			manager, err := NewSecretManager(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &EnvSecretManager{}, manager)
		})
	}
}

func newVaultServer(t *testing.T, body map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/warden" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "vault-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultSecretManager_GetSecret(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "kv v1",
			body: map[string]interface{}{"data": map[string]interface{}{"jwt_secret": "from-vault"}},
		},
		{
			name: "kv v2",
			body: map[string]interface{}{"data": map[string]interface{}{
				"data":     map[string]interface{}{"jwt_secret": "from-vault"},
				"metadata": map[string]interface{}{"version": 3},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newVaultServer(t, tt.body)

			cfg := &Config{}
			cfg.Secrets.Provider = "vault"
			cfg.Secrets.Vault.Address = srv.URL
			cfg.Secrets.Vault.Token = "vault-token"
			cfg.Secrets.Vault.Path = "secret/warden"

			manager, err := NewSecretManager(cfg)
			require.NoError(t, err)

			value, err := manager.GetSecret("jwt_secret")
			require.NoError(t, err)
			assert.Equal(t, "from-vault", value)

			_, err = manager.GetSecret("missing")
			assert.ErrorContains(t, err, "not found in vault secret secret/warden")
		})
	}
}

type fakeSecretsManager struct {
	secret *string
	err    error
	asked  string
	calls  int
}

func (f *fakeSecretsManager) GetSecretValue(input *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.StringValue(input.SecretId)
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.secret}, nil
}

func TestAWSSecretManager_GetSecret(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(`{"webhook_token":"from-aws"}`)}
	manager := newDocumentSecretManager(&awsDocument{client: fake, secretID: defaultAWSSecretID})

	value, err := manager.GetSecret("webhook_token")
	require.NoError(t, err)
	assert.Equal(t, "from-aws", value)
	assert.Equal(t, "warden/secrets", fake.asked)

	_, err = manager.GetSecret("jwt_secret")
	assert.ErrorContains(t, err, "not found in AWS secret warden/secrets")
}

func TestDocumentSecretManager_CachesDocument(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(`{"a":"1","b":"2"}`)}
	manager := newDocumentSecretManager(&awsDocument{client: fake, secretID: "custom/id"})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }

	_, err := manager.GetSecret("a")
	require.NoError(t, err)
	_, err = manager.GetSecret("b")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	now = now.Add(secretDocumentTTL)
	_, err = manager.GetSecret("a")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestAWSSecretManager_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeSecretsManager
		want string
	}{
		{name: "api failure", fake: &fakeSecretsManager{err: errors.New("access denied")}, want: "access denied"},
		{name: "binary secret", fake: &fakeSecretsManager{}, want: "no string value"},
		{name: "malformed", fake: &fakeSecretsManager{secret: aws.String("not json")}, want: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newDocumentSecretManager(&awsDocument{client: tt.fake, secretID: "custom/id"})
			_, err := manager.GetSecret("k")
			assert.ErrorContains(t, err, tt.want)

			// failures are not cached
			_, _ = manager.GetSecret("k")
			assert.Equal(t, 2, tt.fake.calls)
		})
	}
}

func TestResolveJWTSecret(t *testing.T) {
	long := strings.Repeat("k", minJWTSecretLength)

	cfg := &Config{}
	secret, err := cfg.ResolveJWTSecret(&EnvSecretManager{})
	require.NoError(t, err)
	assert.Nil(t, secret, "disabled auth resolves no secret")

	cfg.API.Auth.Enabled = true
	cfg.API.Auth.JWTSecret = long
	secret, err = cfg.ResolveJWTSecret(&EnvSecretManager{})
	require.NoError(t, err)
	assert.Equal(t, []byte(long), secret)

	cfg.API.Auth.JWTSecret = ""
	_, err = cfg.ResolveJWTSecret(&EnvSecretManager{})
	assert.ErrorContains(t, err, "no JWT secret")

	t.Setenv("WARDEN_API_AUTH_JWT_SECRET", "too-short")
	_, err = cfg.ResolveJWTSecret(&EnvSecretManager{})
	assert.ErrorContains(t, err, "at least 32")

	t.Setenv("WARDEN_API_AUTH_JWT_SECRET", long)
	secret, err = cfg.ResolveJWTSecret(&EnvSecretManager{})
	require.NoError(t, err)
	assert.Equal(t, []byte(long), secret)
}
