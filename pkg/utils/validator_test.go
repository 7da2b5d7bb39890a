package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNickname(t *testing.T) {
	got, err := NormalizeNickname("  Bestie  ")
	require.NoError(t, err)
	assert.Equal(t, "Bestie", got)

	got, err = NormalizeNickname("   ")
	require.NoError(t, err)
	assert.Empty(t, got, "blank nickname clears the override")

	_, err = NormalizeNickname(strings.Repeat("ü", MaxNicknameLength+1))
	assert.Error(t, err)

	_, err = NormalizeNickname(strings.Repeat("ü", MaxNicknameLength))
	assert.NoError(t, err, "limit counts runes, not bytes")
}

func TestValidateMessageText(t *testing.T) {
	assert.NoError(t, ValidateMessageText("hi"))
	assert.Error(t, ValidateMessageText(" \n\t"))
	assert.Error(t, ValidateMessageText(strings.Repeat("a", MaxMessageLength+1)))
}
