package common

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxChannelNameLength = 80
	MaxEmojiBytes        = 32
)

func ValidateChannelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Invalid("Channel name is required and must be a string")
	}
	if utf8.RuneCountInString(name) > MaxChannelNameLength {
		return "", Invalid("Channel name must be at most %d characters", MaxChannelNameLength)
	}
	return name, nil
}

// NormalizeEmoji trims and NFC-normalises an emoji so that canonically
// equivalent sequences hit the same unique index entry.
func NormalizeEmoji(emoji string) (string, error) {
	emoji = norm.NFC.String(strings.TrimSpace(emoji))
	if emoji == "" {
		return "", Invalid("Emoji is required")
	}
	if !utf8.ValidString(emoji) {
		return "", Invalid("Emoji must be valid UTF-8")
	}
	if len(emoji) > MaxEmojiBytes {
		return "", Invalid("Emoji must be at most %d bytes", MaxEmojiBytes)
	}
	return emoji, nil
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
