package domain

import "fmt"

// Platform is the product surface a chat session belongs to.
type Platform string

const (
	PlatformRestro      Platform = "restro"
	PlatformLockitTrade Platform = "lockit_trade"
)

// Platforms lists every accepted platform value.
var Platforms = []Platform{PlatformRestro, PlatformLockitTrade}

// ParsePlatform validates s against the closed set of platforms.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformRestro, PlatformLockitTrade:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, s)
}

func (p Platform) String() string {
	return string(p)
}

func (p Platform) Valid() bool {
	_, err := ParsePlatform(string(p))
	return err == nil
}

// Sender marks who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ParseSender validates s against the closed set of senders.
func ParseSender(s string) (Sender, error) {
	switch v := Sender(s); v {
	case SenderUser, SenderAI:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSender, s)
}

func (s Sender) String() string {
	return string(s)
}
