package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSecretsAPI struct {
	values map[string]string
	calls  int
}

func (f *fakeSecretsAPI) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.calls++
	v, ok := f.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, errors.New("SecretNotFound")
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &v}}, nil
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, "development"))
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, ""))
	assert.Equal(t, SourceVault, ResolveSource(SourceAuto, "production"))
	assert.Equal(t, SourceVault, ResolveSource(SourceVault, "development"))
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceEnvironment, "production"))
}

func TestProvider_Environment(t *testing.T) {
	t.Setenv("SITEBOOK_TEST_SECRET", "from-env")

	p, err := NewProvider(&ProviderConfig{Source: SourceEnvironment}, zap.NewNop())
	require.NoError(t, err)

	v, err := p.GetSecret(context.Background(), "SITEBOOK_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = p.GetSecret(context.Background(), "SITEBOOK_TEST_MISSING")
	assert.Error(t, err)
	assert.False(t, p.IsVaultEnabled())
}

func TestProvider_VaultRequiresName(t *testing.T) {
	_, err := NewProvider(&ProviderConfig{Source: SourceVault}, zap.NewNop())
	assert.Error(t, err)
}

func TestProvider_StaticAndEnvOverride(t *testing.T) {
	p := NewStaticProvider(map[string]string{"auth-jwt-secret": "vaulted"}, zap.NewNop())

	v, err := p.GetSecretOrEnv(context.Background(), "auth-jwt-secret", "SITEBOOK_TEST_JWT")
	require.NoError(t, err)
	assert.Equal(t, "vaulted", v)

	t.Setenv("SITEBOOK_TEST_JWT", "override")
	v, err = p.GetSecretOrEnv(context.Background(), "auth-jwt-secret", "SITEBOOK_TEST_JWT")
	require.NoError(t, err)
	assert.Equal(t, "override", v)

	_, err = p.GetSecret(context.Background(), "unknown")
	assert.Error(t, err)
}

func TestVaultClient_Cache(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{"db-password": "s3cret"}}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	v := newVaultClient(api, &VaultConfig{VaultName: "kv", CacheEnabled: true, CacheTTL: time.Minute}, zap.NewNop())
	v.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := v.GetSecret(context.Background(), "db-password")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", got)
	}
	assert.Equal(t, 1, api.calls)

	now = now.Add(2 * time.Minute)
	_, err := v.GetSecret(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)

	v.ClearCache()
	_, err = v.GetSecret(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, 3, api.calls)
}

func TestVaultClient_NoCacheAndMissing(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{"a": "1"}}
	v := newVaultClient(api, &VaultConfig{VaultName: "kv"}, zap.NewNop())

	_, _ = v.GetSecret(context.Background(), "a")
	_, _ = v.GetSecret(context.Background(), "a")
	assert.Equal(t, 2, api.calls)

	_, err := v.GetSecret(context.Background(), "missing")
	assert.ErrorContains(t, err, "missing")
}
