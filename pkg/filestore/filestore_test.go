package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want Location
	}{
		{"local", "config.json", Location{Scheme: SchemeFile, Path: "config.json"}},
		{"file scheme", "file:///etc/tap/config.json", Location{Scheme: SchemeFile, Path: "/etc/tap/config.json"}},
		{"gcs", "gs://bucket/path/to/state.json", Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "path/to/state.json"}},
		{"s3", "s3://bucket/catalog.json", Location{Scheme: SchemeS3, Bucket: "bucket", Key: "catalog.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, uri := range []string{"", "gs://bucket", "s3:///key"} {
		_, err := Parse(uri)
		assert.True(t, errors.IsType(err, errors.ErrorTypeFile), "uri %q", uri)
	}
}

func TestReadFile_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bookmarks":{}}`), 0o600))

	data, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookmarks":{}}`, string(data))

	_, err = ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
