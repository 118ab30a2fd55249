package handler

import (
	"github.com/labstack/echo/v4"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/modules/dm/service"
	"anomali-dm/internal/pkg/ctxkey"
	"anomali-dm/internal/pkg/response"
)

// DMHandler 回合与战役查询接口
type DMHandler struct {
	turns      *service.TurnService
	respWriter response.Writer
}

// NewDMHandler 创建回合处理器
func NewDMHandler(serviceContainer *service.ServiceContainer, respWriter response.Writer) *DMHandler {
	return &DMHandler{
		turns:      serviceContainer.Turns,
		respWriter: respWriter,
	}
}

// ==================== HTTP Request/Response Models ====================

// RespondRequest 玩家行动请求
type RespondRequest struct {
	CampaignID string `json:"campaign_id" validate:"required,max=64" example:"camp-1"`
	UserInput  string `json:"user_input" validate:"max=8000" example:"I search the goblin's pockets"`
	TurnID     string `json:"turn_id,omitempty" validate:"omitempty,max=64" example:"3f0c2a4e-turn"`
	PlayerID   string `json:"player_id,omitempty" validate:"omitempty,max=64"`
}

// RespondResponse 回合结果
type RespondResponse struct {
	Response      string             `json:"response"`
	NarrationHTML string             `json:"narration_html"`
	LogUpdate     *string            `json:"log_update,omitempty"`
	Actions       dm.ActionList      `json:"actions"`
	Warnings      []dm.ParseWarning  `json:"warnings,omitempty"`
	Outcomes      []dm.ActionOutcome `json:"outcomes"`
	Log           *dm.LogOutcome     `json:"log,omitempty"`
	BlockStatus   dm.BlockStatus     `json:"block_status"`
	TurnID        string             `json:"turn_id,omitempty"`
	Replayed      bool               `json:"replayed"`
}

// CampaignLogResponse 战役日志
type CampaignLogResponse struct {
	CampaignID  string        `json:"campaign_id"`
	CampaignLog []dm.LogEntry `json:"campaign_log"`
	Version     int64         `json:"version"`
}

// ==================== HTTP Handlers ====================

// Respond 处理一次玩家行动
// @Summary 玩家行动
// @Description 把玩家输入交给地下城主，返回叙述并执行更新块中的状态变更
// @Tags DM
// @Accept json
// @Produce json
// @Param request body RespondRequest true "玩家行动"
// @Success 200 {object} response.Response{data=RespondResponse} "回合完成"
// @Failure 400 {object} response.Response "输入为空或参数错误"
// @Failure 404 {object} response.Response "战役不存在"
// @Failure 502 {object} response.Response "地下城主暂时无法回应"
// @Router /dm/respond [post]
func (h *DMHandler) Respond(c echo.Context) error {
	var req RespondRequest
	if err := c.Bind(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, "请求格式错误")
	}
	if err := c.Validate(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, err.Error())
	}

	// 访问日志从 context 读取战役与回合
	ctx := ctxkey.WithTurn(c.Request().Context(), req.CampaignID, req.PlayerID, req.TurnID)
	c.SetRequest(c.Request().WithContext(ctx))

	result, err := h.turns.TakeTurn(ctx, service.TurnRequest{
		CampaignID: req.CampaignID,
		UserInput:  req.UserInput,
		TurnID:     req.TurnID,
		PlayerID:   req.PlayerID,
	})
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	return response.EchoOK(c, h.respWriter, ToRespondResponse(result))
}

// GetContext 返回战役快照
// @Summary 战役快照
// @Description 返回世界骨架、战役日志与队伍状态
// @Tags DM
// @Produce json
// @Param campaign_id path string true "战役ID"
// @Success 200 {object} response.Response{data=dm.CampaignContext} "获取成功"
// @Failure 404 {object} response.Response "战役不存在"
// @Router /dm/campaigns/{campaign_id}/context [get]
func (h *DMHandler) GetContext(c echo.Context) error {
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		return response.EchoBadRequest(c, h.respWriter, "战役ID不能为空")
	}

	cc, err := h.turns.CampaignContext(c.Request().Context(), campaignID)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, cc)
}

// GetLog 返回战役日志
// @Summary 战役日志
// @Tags DM
// @Produce json
// @Param campaign_id path string true "战役ID"
// @Success 200 {object} response.Response{data=CampaignLogResponse} "获取成功"
// @Failure 404 {object} response.Response "战役不存在"
// @Router /dm/campaigns/{campaign_id}/log [get]
func (h *DMHandler) GetLog(c echo.Context) error {
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		return response.EchoBadRequest(c, h.respWriter, "战役ID不能为空")
	}

	cl, err := h.turns.CampaignLog(c.Request().Context(), campaignID)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	entries := cl.Entries
	if entries == nil {
		entries = []dm.LogEntry{}
	}
	return response.EchoOK(c, h.respWriter, &CampaignLogResponse{
		CampaignID:  campaignID,
		CampaignLog: entries,
		Version:     cl.Version,
	})
}

// ToRespondResponse 把回合结果转换为接口响应
func ToRespondResponse(result *service.TurnResult) *RespondResponse {
	resp := &RespondResponse{
		Response:      result.Narration,
		NarrationHTML: result.NarrationHTML,
		LogUpdate:     result.LogUpdate,
		Actions:       result.Actions,
		Warnings:      result.Warnings,
		Outcomes:      []dm.ActionOutcome{},
		BlockStatus:   result.BlockStatus,
		TurnID:        result.TurnID,
		Replayed:      result.Replayed,
	}
	if resp.Actions == nil {
		resp.Actions = dm.ActionList{}
	}
	if result.Apply != nil {
		if result.Apply.Outcomes != nil {
			resp.Outcomes = result.Apply.Outcomes
		}
		resp.Log = result.Apply.Log
	}
	return resp
}
