package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("CHAT_APP_ENV", "production")
	t.Setenv("CHAT_RATE_LIMIT_MESSAGES", "5")
	t.Setenv("CHAT_RATE_LIMIT_WINDOW", "1m")
	t.Setenv("CHAT_ADMIN_USER_IDS", "1,7")
	t.Setenv("CHAT_INSTANCE_ID", "gw-1")

	s, err := Load()
	require.NoError(t, err)

	assert.True(t, s.Production())
	assert.Equal(t, int64(5), s.RateLimitMessages)
	assert.Equal(t, time.Minute, s.RateLimitWindow)
	assert.Equal(t, []string{"1", "7"}, s.AdminUserIDs)
	assert.Equal(t, "gw-1", s.InstanceID)
	assert.Equal(t, []int{0, 1}, s.RedisDB)
	assert.Equal(t, 100, s.PreviewLength)
	assert.Equal(t, time.Duration(0), s.EditWindow)
}
