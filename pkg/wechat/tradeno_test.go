package wechat

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeNoRoundTrip(t *testing.T) {
	for i := 0; i < 10; i++ {
		id := uuid.New()
		tn := TradeNoFromUUID(id)
		require.Len(t, tn, 32)
		assert.NotContains(t, tn, "-")

		back, err := UUIDFromTradeNo(tn)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}
}

func TestUUIDFromTradeNo(t *testing.T) {
	t.Run("按 8-4-4-4-12 还原分隔符", func(t *testing.T) {
		id, err := UUIDFromTradeNo("123e4567e89b12d3a456426614174000")
		require.NoError(t, err)
		assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", id.String())
	})

	t.Run("长度不为 32 返回错误", func(t *testing.T) {
		_, err := UUIDFromTradeNo("123")
		assert.Error(t, err)
	})

	t.Run("非法字符返回错误", func(t *testing.T) {
		_, err := UUIDFromTradeNo(strings.Repeat("z", 32))
		assert.Error(t, err)
	})
}
