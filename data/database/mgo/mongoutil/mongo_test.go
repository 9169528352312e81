package mongoutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"PRelay/tools/errs"
)

func TestValidateAndSetDefaults(t *testing.T) {
	c := &Config{Uri: "mongodb://localhost:27017/?authSource=admin", Database: "chat"}
	require.NoError(t, c.ValidateAndSetDefaults())

	assert.Equal(t, defaultMaxPoolSize, c.MaxPoolSize)
	assert.Equal(t, defaultMaxRetry, c.MaxRetry)
	assert.Equal(t, "mongodb://localhost:27017/?authSource=admin", c.Uri)
}

func TestValidateAndSetDefaults_Errors(t *testing.T) {
	err := (&Config{Database: "chat"}).ValidateAndSetDefaults()
	assert.True(t, errors.Is(err, errs.ErrStoreConfig))
	err = (&Config{Uri: "mongodb://x"}).ValidateAndSetDefaults()
	assert.True(t, errors.Is(err, errs.ErrStoreConfig))
}

func TestApplyConfigToOptions(t *testing.T) {
	c := &Config{Uri: "mongodb://db1:27017,db2:27017", Database: "chat", MaxPoolSize: 7}
	opts := applyConfigToOptions(c)
	assert.Equal(t, []string{"db1:27017", "db2:27017"}, opts.Hosts)
	require.NotNil(t, opts.MaxPoolSize)
	assert.EqualValues(t, 7, *opts.MaxPoolSize)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "prelay", *opts.AppName)
}

func TestShouldRetry(t *testing.T) {
	ctx := context.Background()
	assert.True(t, shouldRetry(ctx, errors.New("server selection timeout")))
	assert.False(t, shouldRetry(ctx, mongo.CommandError{Code: 18}), "auth failures are final")
	assert.True(t, shouldRetry(ctx, mongo.CommandError{Code: 11600}))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, shouldRetry(cctx, errors.New("x")))
}
