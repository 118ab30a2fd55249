package validator

import (
	"testing"

	"anomali-dm/internal/pkg/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type respondForm struct {
	CampaignID string `json:"campaign_id" validate:"required,max=64"`
	UserInput  string `json:"user_input" validate:"not_blank"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		form      respondForm
		wantField string
		wantMsg   string
	}{
		{name: "合法请求", form: respondForm{CampaignID: "c1", UserInput: "open the door"}},
		{name: "缺少战役ID", form: respondForm{UserInput: "hi"}, wantField: "campaign_id", wantMsg: "campaign_id不能为空"},
		{name: "输入只有空白", form: respondForm{CampaignID: "c1", UserInput: "  \n"}, wantField: "user_input", wantMsg: "user_input不能为空白"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.form)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			appErr, ok := err.(*xerrors.AppError)
			require.True(t, ok)
			assert.Equal(t, xerrors.CodeInvalidParams, appErr.Code)
			assert.Equal(t, tt.wantField, appErr.Context.Metadata["field"])
			assert.Equal(t, tt.wantMsg, appErr.Context.Metadata["validation_message"])
		})
	}
}
