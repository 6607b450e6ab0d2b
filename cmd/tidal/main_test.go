package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tap30/tidal-go/adapters"
)

func TestParseProps(t *testing.T) {
	props, err := parseProps([]string{"page=/home", "count=3", "paid=true", "ratio=0.5", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "/home", props["page"])
	assert.Equal(t, 3, props["count"])
	assert.Equal(t, true, props["paid"])
	assert.Equal(t, 0.5, props["ratio"])
	assert.Equal(t, "", props["empty"])

	_, err = parseProps([]string{"novalue"})
	assert.Error(t, err)

	props, err = parseProps(nil)
	require.NoError(t, err)
	assert.Nil(t, props)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		opts storeOptions
	}{
		{"file", storeOptions{Kind: "file", Path: dir}},
		{"sqlite", storeOptions{Kind: "sqlite", Path: dir + "/db/tidal.db"}},
		{"memory", storeOptions{Kind: "memory"}},
		{"redis", storeOptions{Kind: "redis", RedisAddr: miniredis.RunT(t).Addr()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := openStore(ctx, tt.opts)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Set("tidal:test", []byte("v")))
			got, err := s.Get("tidal:test")
			require.NoError(t, err)
			assert.Equal(t, "v", string(got))
		})
	}

	s, err := openStore(ctx, storeOptions{Kind: "none"})
	require.NoError(t, err)
	_, err = s.Get("anything")
	assert.ErrorIs(t, err, adapters.ErrKeyNotFound)
}

func TestOpenStore_Errors(t *testing.T) {
	ctx := context.Background()
	for _, opts := range []storeOptions{
		{Kind: "tape"},
		{Kind: "redis"},
		{Kind: "s3"},
	} {
		_, err := openStore(ctx, opts)
		assert.Error(t, err, opts.Kind)
	}
}
