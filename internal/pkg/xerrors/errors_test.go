package xerrors

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
		want int
	}{
		{name: "空输入返回400", code: CodeDMEmptyUserInput, want: 400},
		{name: "参数错误返回400", code: CodeInvalidParams, want: 400},
		{name: "战役不存在返回404", code: CodeDMCampaignNotFound, want: 404},
		{name: "模型失败返回502", code: CodeDMCompletionFailure, want: 502},
		{name: "版本冲突返回409", code: CodeDMVersionConflict, want: 409},
		{name: "数据库错误返回503", code: CodeDatabaseError, want: 503},
		{name: "内部错误返回500", code: CodeInternalError, want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestFromCodeDerivesAttributes(t *testing.T) {
	err := FromCode(CodeDMCompletionFailure)
	assert.Equal(t, "dm", err.Category)
	assert.Equal(t, LevelCritical, err.Level)
	assert.True(t, err.IsRetryable())
	assert.Equal(t, "地下城主暂时无法回应", err.Message)

	absorbed := FromCode(CodeDMUnknownActionType)
	assert.Equal(t, LevelInfo, absorbed.Level)
	assert.False(t, absorbed.IsRetryable())
}

func TestWrapKeepsExistingAppError(t *testing.T) {
	original := NewCampaignNotFoundError("c-1")
	wrapped := fmt.Errorf("load context: %w", original)

	got := Wrap(wrapped, CodeInternalError, "ignored")
	require.Same(t, original, got)
	assert.Equal(t, CodeDMCampaignNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeDMCampaignNotFound))
}

func TestWrapPlainError(t *testing.T) {
	base := errors.New("connection reset")
	got := Wrap(base, CodeDatabaseError, "读取角色失败")

	require.NotNil(t, got)
	assert.Equal(t, CodeDatabaseError, got.Code)
	assert.ErrorIs(t, got, base)
	assert.Contains(t, got.Error(), "[700003] 读取角色失败")
	assert.NotEmpty(t, got.File)

	assert.Nil(t, Wrap(nil, CodeDatabaseError, "x"))
	assert.Equal(t, CodeInternalError, CodeOf(base))
}

func TestWithMetadataAndCampaign(t *testing.T) {
	err := NewPersistenceError("put_inventory", "char-9", errors.New("timeout")).
		WithCampaign("c-1", "turn-1")

	require.NotNil(t, err.Context)
	assert.Equal(t, "c-1", err.Context.CampaignID)
	assert.Equal(t, "turn-1", err.Context.TurnID)
	assert.Equal(t, "char-9", err.Context.Metadata["character_id"])
	assert.Equal(t, slog.KindGroup, err.LogValue().Kind())
}
