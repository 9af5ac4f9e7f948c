package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   Config
	}{
		{
			name:   "mongodb target with database and pool",
			target: "mongodb://localhost:50000/test?maxPoolSize=1",
			want: Config{
				URI:         "mongodb://localhost:50000/test?maxPoolSize=1",
				Database:    "test",
				MaxPoolSize: 1,
			},
		},
		{
			name:   "scheme-less target",
			target: "localhost:50000/app?maxPoolSize=4",
			want: Config{
				URI:         "mongodb://localhost:50000/app?maxPoolSize=4",
				Database:    "app",
				MaxPoolSize: 4,
			},
		},
		{
			name:   "defaults",
			target: "mongodb://localhost:27017",
			want: Config{
				URI:         "mongodb://localhost:27017",
				Database:    DefaultDatabase,
				MaxPoolSize: DefaultMaxPoolSize,
			},
		},
		{
			name:   "sqlite memory",
			target: "sqlite::memory:?maxPoolSize=2",
			want: Config{
				URI:         "sqlite::memory:?maxPoolSize=2",
				Database:    DefaultDatabase,
				MaxPoolSize: 2,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want.URI, got.URI)
			assert.Equal(t, tt.want.Database, got.Database)
			assert.Equal(t, tt.want.MaxPoolSize, got.MaxPoolSize)
			assert.Equal(t, DefaultConnectTimeout, got.ConnectTimeout)
			assert.Equal(t, DefaultOperationTimeout, got.OperationTimeout)
		})
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		errMsg string
	}{
		{"empty", "  ", "target address is required"},
		{"zero pool", "mongodb://localhost:27017/?maxPoolSize=0", "max pool size must be at least 1"},
		{"bad sqlite pool", "sqlite::memory:?maxPoolSize=x", "maxPoolSize"},
		{"unknown scheme", "redis://localhost:6379", "unsupported scheme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(tt.target)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{URI: "sqlite::memory:", MaxPoolSize: 1}
	assert.NoError(t, valid.Validate())

	noURI := valid
	noURI.URI = ""
	assert.Error(t, noURI.Validate())

	zeroPool := valid
	zeroPool.MaxPoolSize = 0
	assert.Error(t, zeroPool.Validate())

	negative := valid
	negative.OperationTimeout = -time.Second
	assert.Error(t, negative.Validate())
}

func TestParseReadPref(t *testing.T) {
	tests := []struct {
		input string
		want  ReadPref
	}{
		{"", ""},
		{"primary", ReadPrimary},
		{"SECONDARY", ReadSecondary},
		{"secondaryPreferred", ReadSecondaryPreferred},
		{"SECONDARY_PREFERRED", ReadSecondaryPreferred},
		{"primary_preferred", ReadPrimaryPreferred},
		{"Nearest", ReadNearest},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseReadPref(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseReadPref("fastest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown read preference "fastest"`)
}

func TestReadPref_String(t *testing.T) {
	assert.Equal(t, "default", ReadPref("").String())
	assert.Equal(t, "secondary", ReadSecondary.String())
}

func TestScheme(t *testing.T) {
	assert.Equal(t, "mongodb", Scheme("mongodb://localhost"))
	assert.Equal(t, "mongodb", Scheme("mongodb+srv://cluster.example.com"))
	assert.Equal(t, "sqlite", Scheme("sqlite::memory:"))
	assert.Equal(t, "", Scheme("localhost"))
}

type stubDialer struct {
	called bool
}

func (s *stubDialer) Dial(context.Context, Config) (Conn, error) {
	s.called = true
	return nil, nil
}

func TestSchemes_Dial(t *testing.T) {
	mongo := &stubDialer{}
	schemes := Schemes{"mongodb": mongo}

	_, err := schemes.Dial(context.Background(), Config{URI: "mongodb+srv://x"})
	require.NoError(t, err)
	assert.True(t, mongo.called)

	_, err = schemes.Dial(context.Background(), Config{URI: "sqlite::memory:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no store registered for scheme "sqlite"`)
}

func TestDialerFunc(t *testing.T) {
	var got Config
	d := DialerFunc(func(_ context.Context, cfg Config) (Conn, error) {
		got = cfg
		return nil, nil
	})
	_, err := d.Dial(context.Background(), Config{URI: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", got.URI)
}
