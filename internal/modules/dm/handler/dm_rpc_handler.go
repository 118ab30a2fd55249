package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"anomali-dm/internal/modules/dm/service"
	"anomali-dm/internal/pkg/xerrors"
)

// DMRPCHandler 回合 RPC 处理器
// 供其他模块（如聊天网关）直接发起回合
type DMRPCHandler struct {
	turns *service.TurnService
}

// NewDMRPCHandler 创建回合 RPC Handler
func NewDMRPCHandler(serviceContainer *service.ServiceContainer) *DMRPCHandler {
	return &DMRPCHandler{turns: serviceContainer.Turns}
}

// TakeTurn 请求与响应都是 structpb.Struct
// 请求字段：campaign_id, user_input, turn_id, player_id
func (h *DMRPCHandler) TakeTurn(data []byte) ([]byte, error) {
	req := &structpb.Struct{}
	if err := proto.Unmarshal(data, req); err != nil {
		return nil, xerrors.NewValidationError("request", "invalid protobuf data")
	}

	fields := req.GetFields()
	result, err := h.turns.TakeTurn(context.Background(), service.TurnRequest{
		CampaignID: fields["campaign_id"].GetStringValue(),
		UserInput:  fields["user_input"].GetStringValue(),
		TurnID:     fields["turn_id"].GetStringValue(),
		PlayerID:   fields["player_id"].GetStringValue(),
	})
	if err != nil {
		return nil, err
	}

	out, err := toStruct(ToRespondResponse(result))
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.CodeInternalError, "failed to encode turn result")
	}
	return proto.Marshal(out)
}

// toStruct 经 JSON 转成 structpb，字段名与 HTTP 响应一致
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
