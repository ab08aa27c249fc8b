package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("restro")
	require.NoError(t, err)
	assert.Equal(t, PlatformRestro, p)

	p, err = ParsePlatform("lockit_trade")
	require.NoError(t, err)
	assert.Equal(t, PlatformLockitTrade, p)

	for _, bad := range []string{"", "RESTRO", "lockit-trade", "other"} {
		_, err := ParsePlatform(bad)
		assert.True(t, errors.Is(err, ErrInvalidPlatform), "value %q", bad)
	}
	assert.False(t, Platform("nope").Valid())
}

func TestParseSender(t *testing.T) {
	s, err := ParseSender("ai")
	require.NoError(t, err)
	assert.Equal(t, SenderAI, s)

	_, err = ParseSender("assistant")
	assert.True(t, errors.Is(err, ErrInvalidSender))
}

func TestTurnMessages(t *testing.T) {
	res := Resource{"row_count": 2}
	msgs := TurnMessages("hi", res, "hello")
	require.Len(t, msgs, 2)
	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, "hi", msgs[0].Message)
	assert.Equal(t, res, msgs[0].Resource)
	assert.Equal(t, SenderAI, msgs[1].Sender)
	assert.Equal(t, "hello", msgs[1].Message)
	assert.Nil(t, msgs[1].Resource)
}
