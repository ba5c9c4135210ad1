package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	require := require.New(t)

	w := NewWriter()
	w.PutU16(0) // placeholder, patched below
	w.PutFixed([]byte("abcdefghijklmnop"))
	w.PutVariable([]byte{0xAA, 0xBB})
	w.PutString("hello")
	require.NoError(w.Err())
	w.PatchU16(0, uint16(w.Len()-2))
	require.NoError(w.Err())

	r := NewReader(w.Bytes())
	total := r.U16()
	require.Equal(uint16(w.Len()-2), total)
	require.Equal(int(total), r.Remaining())

	host := r.Fixed(16)
	require.Equal("abcdefghijklmnop", string(host))

	variable := r.Variable()
	require.Equal([]byte{0xAA, 0xBB}, variable)

	s := r.String()
	require.Equal("hello", s)
	require.NoError(r.Err())
	require.Zero(r.Remaining())
}

func TestReaderUnderflowIsSticky(t *testing.T) {
	require := require.New(t)

	r := NewReader([]byte{0x00, 0x01})
	require.Equal(uint16(1), r.U16())
	require.Nil(r.Fixed(16))
	require.ErrorIs(r.Err(), ErrUnderflow)

	// Further operations are no-ops once the sticky error is set.
	require.Equal(uint8(0), r.U8())
	require.ErrorIs(r.Err(), ErrUnderflow)
}

func TestReaderInvalidUTF8(t *testing.T) {
	require := require.New(t)

	w := NewWriter()
	w.PutVariable([]byte{0xFF, 0xFE})
	require.NoError(w.Err())

	r := NewReader(w.Bytes())
	s := r.String()
	require.Empty(s)
	require.ErrorIs(r.Err(), ErrInvalidUTF8)
}

func TestWriterOverflowIsSticky(t *testing.T) {
	require := require.New(t)

	w := NewWriter()
	big := make([]byte, 0x10000)
	w.PutVariable(big)
	require.ErrorIs(w.Err(), ErrOverflow)

	lenBefore := w.Len()
	w.PutU8(1)
	require.Equal(lenBefore, w.Len(), "writes after an error must be no-ops")
}

func TestReaderNeverPanicsOnGarbage(t *testing.T) {
	require := require.New(t)

	for _, buf := range [][]byte{
		nil,
		{},
		{0x00},
		{0xFF, 0xFF, 0x01, 0x02},
	} {
		require.NotPanics(func() {
			r := NewReader(buf)
			_ = r.U16()
			_ = r.Fixed(16)
			_ = r.Variable()
			_ = r.String()
		})
	}
}
