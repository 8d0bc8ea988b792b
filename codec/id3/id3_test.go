package id3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tag(size int, flags byte) []byte {
	return []byte{
		'I', 'D', '3', 4, 0, flags,
		byte(size >> 21 & 0x7F), byte(size >> 14 & 0x7F), byte(size >> 7 & 0x7F), byte(size & 0x7F),
	}
}

func TestTrySkipPlainTag(t *testing.T) {
	s := New()
	head := append(tag(257, 0), make([]byte, 300)...)
	assert.Equal(t, 10+257, s.TrySkip(head))
}

func TestTrySkipFooterAddsTrailer(t *testing.T) {
	s := New()
	head := append(tag(100, 0x10), make([]byte, 200)...)
	assert.Equal(t, 10+100+10, s.TrySkip(head))
}

func TestTrySkipRejectsNonTag(t *testing.T) {
	s := New()
	assert.Zero(t, s.TrySkip([]byte("RIFFxxxxWAVE")))
	assert.Zero(t, s.TrySkip([]byte("ID")))
}

func TestTrySkipRejectsNonSyncsafeSize(t *testing.T) {
	s := New()
	head := tag(0, 0)
	head[6] = 0x80
	assert.Zero(t, s.TrySkip(head))
}
