package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// NewSessionID returns the random identifier behind the ambient cookie scheme.
func NewSessionID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// NewPortableID returns the cross-application identity string embedded in
// bearer tokens: "hub-<unix millis, base36>-<random>".
func NewPortableID() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return "hub-" + ts + "-" + hex.EncodeToString(raw), nil
}

// NewBotKey returns a long-lived bot credential, distinct from user secrets.
func NewBotKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "bot_" + hex.EncodeToString(raw), nil
}
