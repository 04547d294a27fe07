package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugetable/hugetable/internal/pool"
)

func TestBool(t *testing.T) {
	bb := pool.NewByteBuffer(16)

	EncodeBool(bb, true)
	EncodeBool(bb, false)
	EncodeBool(bb, true)

	offs := 0
	v, err := DecodeBool(bb.Bytes(), &offs)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = DecodeBool(bb.Bytes(), &offs)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = DecodeBool(bb.Bytes(), &offs)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestUTF8(t *testing.T) {
	bb := pool.NewByteBuffer(64)

	EncodeUTF8(bb, "abc")
	EncodeUTF8(bb, "abcäöü-yo")
	EncodeUTF8(bb, "")
	EncodeUTF8(bb, "hey")

	offs := 0
	for _, want := range []string{"abc", "abcäöü-yo", "", "hey"} {
		got, err := DecodeUTF8(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestUTF8_Truncated(t *testing.T) {
	bb := pool.NewByteBuffer(16)
	EncodeUTF8(bb, "hello")

	buf := bb.Bytes()[:2]
	offs := 0
	_, err := DecodeUTF8(buf, &offs)
	require.Error(t, err)
}

func TestFixedU32(t *testing.T) {
	bb := pool.NewByteBuffer(32)
	values := []uint32{0, 1, 127, 128, 9988, 1234567890}

	for _, v := range values {
		EncodeFixedU32(bb, v)
	}

	offs := 0
	for _, want := range values {
		got, err := DecodeFixedU32(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFixedU64(t *testing.T) {
	bb := pool.NewByteBuffer(64)
	values := []uint64{0, 1, 127, 128, 9988, 1234567890, 0x1234565432101234, 0xffffffffffffffff}

	for _, v := range values {
		EncodeFixedU64(bb, v)
	}

	offs := 0
	for _, want := range values {
		got, err := DecodeFixedU64(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFixedU64_Truncated(t *testing.T) {
	bb := pool.NewByteBuffer(8)
	EncodeFixedU64(bb, 0xffffffffffffffff)

	buf := bb.Bytes()[:4]
	offs := 0
	_, err := DecodeFixedU64(buf, &offs)
	require.Error(t, err)
}

func TestVarintU32(t *testing.T) {
	bb := pool.NewByteBuffer(32)
	values := []uint32{0, 1, 127, 128, 9988, 1234567890}

	for _, v := range values {
		EncodeVarintU32(bb, v)
	}

	offs := 0
	for _, want := range values {
		got, err := DecodeVarintU32(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestVarintU64(t *testing.T) {
	bb := pool.NewByteBuffer(64)
	values := []uint64{0, 1, 127, 128, 9988, 1234567890, 0x1234565432101234, 0xffffffffffffffff}

	for _, v := range values {
		EncodeVarintU64(bb, v)
	}

	offs := 0
	for _, want := range values {
		got, err := DecodeVarintU64(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestVarintU64_SmallValuesAreOneByte(t *testing.T) {
	bb := pool.NewByteBuffer(8)
	EncodeVarintU64(bb, 100)
	assert.Equal(t, 1, bb.Len())
}

func TestVarintU64_TruncatedContinuation(t *testing.T) {
	buf := []byte{0x80, 0x80}
	offs := 0
	_, err := DecodeVarintU64(buf, &offs)
	require.Error(t, err)
}

func TestZigzagI64(t *testing.T) {
	bb := pool.NewByteBuffer(64)
	values := []int64{0, 1, -1, 2, -2, 127, -127, 128, -128, 1234567890, -1234567890}

	for _, v := range values {
		EncodeZigzagI64(bb, v)
	}

	offs := 0
	for _, want := range values {
		got, err := DecodeZigzagI64(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestZigzagI32(t *testing.T) {
	bb := pool.NewByteBuffer(32)
	values := []int32{0, 1, -1, 2, -2, 127, -127, 128, -128, 12345, -12345}

	for _, v := range values {
		EncodeZigzagI32(bb, v)
	}

	offs := 0
	for _, want := range values {
		got, err := DecodeZigzagI32(bb.Bytes(), &offs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestZigzagI64_SmallNegativeIsCompact(t *testing.T) {
	bb := pool.NewByteBuffer(8)
	EncodeZigzagI64(bb, -1)
	assert.Equal(t, 1, bb.Len())
}

func TestVarintLen(t *testing.T) {
	bb := pool.NewByteBuffer(16)
	EncodeVarintLen(bb, 0)
	EncodeVarintLen(bb, 300)

	offs := 0
	n, err := DecodeVarintLen(bb.Bytes(), &offs)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = DecodeVarintLen(bb.Bytes(), &offs)
	require.NoError(t, err)
	assert.Equal(t, 300, n)
}
