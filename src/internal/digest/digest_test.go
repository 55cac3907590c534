// FILE: src/internal/digest/digest_test.go
package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHexIsLowercase(t *testing.T) {
	sum := SHA256([]byte("hello"))
	got := ToHex(sum[:])
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)
}

func TestFromHexSkipsSeparators(t *testing.T) {
	got, err := FromHex("de:ad-be ef\n00")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0x00}, got)
}

func TestFromHexRejectsOddDigitCount(t *testing.T) {
	_, err := FromHex("abc")
	assert.Error(t, err)
}

func TestFromHexRejectsInvalidCharacter(t *testing.T) {
	_, err := FromHex("zz")
	assert.Error(t, err)
}

func TestHMACSHA256KnownVector(t *testing.T) {
	// RFC 4231 test case 1.
	key := make([]byte, 20)
	for i := range key {
		key[i] = 0x0b
	}
	got := HMACSHA256(key, []byte("Hi There"))
	assert.Equal(t, "b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7", ToHex(got))
}

func TestEqualMAC(t *testing.T) {
	a := HMACSHA256([]byte("k"), []byte("data"))
	b := HMACSHA256([]byte("k"), []byte("data"))
	c := HMACSHA256([]byte("k"), []byte("other"))
	assert.True(t, EqualMAC(a, b))
	assert.False(t, EqualMAC(a, c))
}
