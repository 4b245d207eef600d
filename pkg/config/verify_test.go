package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		setDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{name: "valid config", config: valid()},
		{name: "missing listen", config: func() *Config { c := valid(); c.Server.Listen = ""; return c }(), errMsg: "server.listen is required"},
		{name: "missing timeout", config: func() *Config { c := valid(); c.Server.Timeout = 0; return c }(), errMsg: "server.timeout is required"},
		{name: "missing key", config: func() *Config { c := valid(); c.Storage.Key = ""; return c }(), errMsg: "storage.key is required"},
		{name: "missing profile cookie", config: func() *Config { c := valid(); c.Cookie.ProfileCookie = ""; return c }(), errMsg: "cookie.profile_cookie"},
		{name: "sqlite without dsn", config: func() *Config { c := valid(); c.Database.DSN = ""; return c }(), errMsg: "database.dsn"},
		{name: "memory without dsn", config: func() *Config {
			c := valid()
			c.Storage.Primary = StorageMemory
			c.Database.DSN = ""
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyAgainstEmbeddedSchema(tt.config)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestVerify_SchemaMismatch(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	t.Run("bad json", func(t *testing.T) {
		err := verify(cfg, []byte("{not json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse embedded schema")
	})

	t.Run("no config definition", func(t *testing.T) {
		err := verify(cfg, []byte(`{"$defs":{}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no Config definition")
	})

	t.Run("section missing from schema", func(t *testing.T) {
		schema := `{"$defs":{"Config":{"properties":{"server":{},"database":{},"storage":{},"cookie":{},"consent":{}}}}}`
		err := verify(cfg, []byte(schema))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[purge redis]")
	})
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Contains(t, schema.Definitions, "Config")
	assert.Contains(t, schema.Definitions, "StorageConfig")
}
