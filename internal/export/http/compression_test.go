package http

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("ifstats,ifid=1 bytes=1024i,packets=12i 1700000000\n", 8))

	tests := []struct {
		algorithm string
		encoding  string
		shrinks   bool
	}{
		{algorithm: CompressionGzip, encoding: "gzip", shrinks: true},
		{algorithm: CompressionZstd, encoding: "zstd", shrinks: true},
		{algorithm: CompressionZlib, encoding: "deflate", shrinks: true},
		{algorithm: CompressionSnappy, encoding: "snappy", shrinks: true},
		{algorithm: CompressionNone, encoding: ""},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			c, err := NewCompressor(tt.algorithm)
			require.NoError(t, err)
			defer c.Close()

			compressed, err := c.Compress(original)
			require.NoError(t, err)

			if tt.shrinks {
				assert.Less(t, len(compressed), len(original))
			} else {
				assert.Equal(t, original, compressed)
			}

			assert.Equal(t, tt.encoding, c.ContentEncoding())

			decompressed, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, original, decompressed)
		})
	}
}

func TestNewCompressor_Invalid(t *testing.T) {
	_, err := NewCompressor("brotli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported compression algorithm")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Address: "http://localhost:8086/write?db=ntopng"},
			wantErr: false,
		},
		{
			name:    "https with zstd",
			cfg:     Config{Address: "https://collector:443/ingest", Compression: CompressionZstd},
			wantErr: false,
		},
		{
			name:    "missing address",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			cfg:     Config{Address: "ftp://localhost/x"},
			wantErr: true,
		},
		{
			name:    "missing host",
			cfg:     Config{Address: "http:///write"},
			wantErr: true,
		},
		{
			name:    "invalid compression",
			cfg:     Config{Address: "http://localhost:8080", Compression: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Address: "http://localhost"}
	cfg.ApplyDefaults()

	assert.Equal(t, CompressionNone, cfg.Compression)
	assert.Equal(t, "text/plain; charset=utf-8", cfg.ContentType)
	assert.True(t, cfg.IsKeepAlive())
	assert.Positive(t, cfg.Timeout)
}
