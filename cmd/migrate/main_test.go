package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr string
	}{
		{
			name: "defaults with env dsn",
			env:  map[string]string{"STOREFRONT_POSTGRES_DSN": " postgres://localhost/storefront "},
			want: options{direction: "up", version: -1, dsn: "postgres://localhost/storefront"},
		},
		{
			name: "flag dsn wins",
			args: []string{"-direction=DOWN", "-steps=2", "-dsn=postgres://flag/db"},
			env:  map[string]string{"STOREFRONT_POSTGRES_DSN": "postgres://env/db"},
			want: options{direction: "down", steps: 2, version: -1, dsn: "postgres://flag/db"},
		},
		{
			name: "force with version",
			args: []string{"-direction=force", "-version=1", "-dsn=postgres://db"},
			want: options{direction: "force", version: 1, dsn: "postgres://db"},
		},
		{name: "missing dsn", args: []string{"-direction=status"}, wantErr: "STOREFRONT_POSTGRES_DSN"},
		{name: "force without version", args: []string{"-direction=force", "-dsn=postgres://db"}, wantErr: "-version"},
		{name: "negative steps", args: []string{"-steps=-1", "-dsn=postgres://db"}, wantErr: "-steps"},
		{name: "unknown direction", args: []string{"-direction=sideways", "-dsn=postgres://db"}, wantErr: "sideways"},
		{name: "unknown flag", args: []string{"-verbose"}, wantErr: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(tt.args, envOf(tt.env))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errUsage))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_UnreachableDatabase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, options{direction: "status", dsn: "postgres://storefront@127.0.0.1:1/storefront?sslmode=disable&connect_timeout=1"}, &out)
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRun_MigratesTestDatabase(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("STOREFRONT_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, options{direction: "up", dsn: dsn}, &out))
	assert.Contains(t, out.String(), "up: version=2 dirty=false")

	out.Reset()
	require.NoError(t, run(ctx, options{direction: "down", steps: 1, dsn: dsn}, &out))
	assert.Contains(t, out.String(), "down: version=1")

	out.Reset()
	require.NoError(t, run(ctx, options{direction: "up", dsn: dsn}, &out))
	require.NoError(t, run(ctx, options{direction: "status", dsn: dsn}, &out))
	assert.Contains(t, out.String(), "status: version=2 dirty=false")
}
