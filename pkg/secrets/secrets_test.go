package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	calls int
	value *string
	err   error
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestAWSStoreCachesSecret(t *testing.T) {
	api := &fakeSecretsAPI{value: aws.String(`{"connectionUri":"mongodb://host/?opt=1","port":27017}`)}
	store := newAWSStore(api, AWSOptions{})

	for i := 0; i < 3; i++ {
		secret, err := store.GetSecret(context.Background(), "prod/mongodb")
		require.NoError(t, err)
		assert.Equal(t, "mongodb://host/?opt=1", secret["connectionUri"])
		_, hasPort := secret["port"]
		assert.False(t, hasPort, "non-string fields are dropped")
	}
	assert.Equal(t, 1, api.calls)

	store.Invalidate("prod/mongodb")
	_, err := store.GetSecret(context.Background(), "prod/mongodb")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestAWSStoreNotFound(t *testing.T) {
	api := &fakeSecretsAPI{err: &types.ResourceNotFoundException{Message: aws.String("gone")}}
	store := newAWSStore(api, AWSOptions{})

	_, err := store.GetSecret(context.Background(), "prod/mongodb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAWSStoreOtherErrors(t *testing.T) {
	store := newAWSStore(&fakeSecretsAPI{err: errors.New("throttled")}, AWSOptions{})
	_, err := store.GetSecret(context.Background(), "prod/mongodb")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	store = newAWSStore(&fakeSecretsAPI{}, AWSOptions{})
	_, err = store.GetSecret(context.Background(), "prod/mongodb")
	assert.Error(t, err, "binary secrets are rejected")

	store = newAWSStore(&fakeSecretsAPI{value: aws.String("plain-text")}, AWSOptions{})
	_, err = store.GetSecret(context.Background(), "prod/mongodb")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	store.SetSecret("mongo", map[string]string{"connectionUri": "mongodb://localhost/"})
	secret, err := store.GetSecret(context.Background(), "mongo")
	require.NoError(t, err)
	secret["connectionUri"] = "changed"

	again, err := store.GetSecret(context.Background(), "mongo")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost/", again["connectionUri"])
}

func TestEnvStore(t *testing.T) {
	t.Setenv("DEV_RESTAURANT_MONGO_CONNECTION_URI", "mongodb://localhost:27017/")

	secret, err := EnvStore{}.GetSecret(context.Background(), "dev/restaurant-mongo")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017/", secret["connectionUri"])

	_, err = EnvStore{}.GetSecret(context.Background(), "dev/other")
	assert.ErrorIs(t, err, ErrNotFound)
}
