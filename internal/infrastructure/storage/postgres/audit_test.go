package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_CompressesLargePayloads(t *testing.T) {
	r, err := NewAuditRepo(nil, 64)
	require.NoError(t, err)
	defer r.Close()

	small := []byte(`{"name":"Red"}`)
	plain, packed, algo := r.compress(small)
	assert.Equal(t, CompressionNone, algo)
	assert.Equal(t, small, plain)
	assert.Nil(t, packed)

	large := []byte(`{"description":"` + string(bytes.Repeat([]byte("tannic "), 100)) + `"}`)
	plain, packed, algo = r.compress(large)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, plain)
	assert.Less(t, len(packed), len(large))

	back, err := r.decoder.DecodeAll(packed, nil)
	require.NoError(t, err)
	assert.Equal(t, large, back)
}

func TestNewAuditRepo_DefaultThreshold(t *testing.T) {
	r, err := NewAuditRepo(nil, 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, DefaultCompressThreshold, r.threshold)
}
