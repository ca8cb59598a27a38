package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(20)
	require.NoError(t, err)

	assert.Len(t, token, 40)
	assert.Regexp(t, "^[0-9a-f]+$", token)
}

func TestGenerateDigitCode(t *testing.T) {
	for range 50 {
		code, err := GenerateDigitCode(6)
		require.NoError(t, err)

		assert.Len(t, code, 6)
		assert.Regexp(t, "^[0-9]{6}$", code)
	}
}

func TestRandStr(t *testing.T) {
	s := RandStr(10)
	assert.Len(t, s, 10)
	assert.Regexp(t, "^[a-zA-Z]+$", s)
}
