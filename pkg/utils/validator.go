package utils

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxNicknameLength = 32
	MaxMessageLength  = 2000
)

// NormalizeNickname trims a nickname and validates its length.
// An empty result is valid and clears the override.
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return "", errors.New("nickname must be at most 32 characters")
	}
	return nickname, nil
}

// ValidateMessageText validates chat message text
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return errors.New("message text must be at most 2000 characters")
	}
	return nil
}
