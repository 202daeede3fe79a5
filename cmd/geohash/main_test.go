package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEncodeCmd(t *testing.T) {
	out, err := run(t, "encode", "37.5665", "126.9780")
	require.NoError(t, err)
	assert.Equal(t, "wydm9q\n", out)

	out, err = run(t, "encode", "-p", "5", "--", "-90", "-180")
	require.NoError(t, err)
	assert.Equal(t, "00000\n", out)
}

func TestEncodeCmd_Errors(t *testing.T) {
	_, err := run(t, "encode", "abc", "1")
	assert.Error(t, err)

	_, err = run(t, "encode", "91", "0")
	assert.ErrorIs(t, err, geohash.ErrInvalidCoordinate)

	_, err = run(t, "encode", "-p", "13", "1", "1")
	assert.ErrorIs(t, err, geohash.ErrInvalidPrecision)
}

func TestDecodeCmd(t *testing.T) {
	out, err := run(t, "decode", "wydm6")
	require.NoError(t, err)
	assert.Contains(t, out, "center 37.507324,127.023926")

	out, err = run(t, "decode", "--json", "wydm6")
	require.NoError(t, err)
	var box geohash.Box
	require.NoError(t, json.Unmarshal([]byte(out), &box))
	assert.Equal(t, 37.4853515625, box.MinLat)
	assert.Equal(t, 127.0458984375, box.MaxLon)

	_, err = run(t, "decode", "wydma")
	assert.ErrorIs(t, err, geohash.ErrInvalidCellCharacter)
}

func TestTrackCmd_RequiresUser(t *testing.T) {
	_, err := run(t, "track", "--lat", "1", "--lon", "1")
	assert.Error(t, err)
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(fmt.Errorf("run: %w", context.Canceled)))
	boom := errors.New("boom")
	assert.Equal(t, boom, ignoreCanceled(boom))
}
