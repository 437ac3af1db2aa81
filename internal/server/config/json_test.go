package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyJson_PartialOverlay(t *testing.T) {
	t.Parallel()

	var c Config
	c.LoadDefaults()

	raw := []byte(`{
		"database_dsn": "postgres://json",
		"access_token_ttl": "5m",
		"bcrypt_cost": 8
	}`)

	j := &JsonConfig{}
	require.NoError(t, json.Unmarshal(raw, j))
	applyJson(&c, j)

	assert.Equal(t, "postgres://json", c.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 8, c.BcryptCost)

	// omitted fields keep defaults
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
}

func TestApplyJson_NanosecondDurations(t *testing.T) {
	t.Parallel()

	var c Config
	c.LoadDefaults()

	raw := []byte(`{"refresh_token_ttl": 3600000000000}`)
	j := &JsonConfig{}
	require.NoError(t, json.Unmarshal(raw, j))
	applyJson(&c, j)

	assert.Equal(t, time.Hour, c.RefreshTokenTTL)
}
