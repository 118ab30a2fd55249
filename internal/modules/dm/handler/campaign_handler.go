package handler

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/modules/dm/service"
	"anomali-dm/internal/pkg/response"
)

// CampaignHandler 战役生成与角色管理接口
type CampaignHandler struct {
	generator  *service.CampaignGenerator
	roster     *service.RosterService
	respWriter response.Writer
}

// NewCampaignHandler 创建战役处理器
func NewCampaignHandler(serviceContainer *service.ServiceContainer, respWriter response.Writer) *CampaignHandler {
	return &CampaignHandler{
		generator:  serviceContainer.Generator,
		roster:     serviceContainer.Roster,
		respWriter: respWriter,
	}
}

// GenerateCampaignRequest 生成战役请求
type GenerateCampaignRequest struct {
	dm.CampaignParams
	Persist bool   `json:"persist"`
	Name    string `json:"name,omitempty" validate:"max=200"`
}

// AddCharacterRequest 新增角色请求
type AddCharacterRequest struct {
	CharacterID string          `json:"character_id,omitempty" validate:"omitempty,max=64"`
	Name        string          `json:"name" validate:"required,not_blank,max=100"`
	Stats       json.RawMessage `json:"stats,omitempty" swaggertype:"object"`
	Inventory   []string        `json:"inventory"`
	Spells      []string        `json:"spells"`
	SpellSlots  dm.SpellSlots   `json:"spell_slots" swaggertype:"object"`
	IsPresent   *bool           `json:"is_present,omitempty"`
}

// Generate 生成世界大纲
// @Summary 生成战役
// @Description 根据玩家偏好让模型生成世界大纲，persist 为 true 时保存为新战役
// @Tags 战役
// @Accept json
// @Produce json
// @Param request body GenerateCampaignRequest true "战役偏好"
// @Success 200 {object} response.Response{data=service.GeneratedCampaign} "生成成功"
// @Failure 400 {object} response.Response "请求参数错误"
// @Failure 502 {object} response.Response "模型生成失败"
// @Router /dm/campaigns/generate [post]
func (h *CampaignHandler) Generate(c echo.Context) error {
	var req GenerateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, "请求格式错误")
	}
	if err := c.Validate(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, err.Error())
	}

	result, err := h.generator.Generate(c.Request().Context(), service.GenerateRequest{
		Params:  req.CampaignParams,
		Persist: req.Persist,
		Name:    req.Name,
	})
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, result)
}

// AddCharacter 向战役加入角色
// @Summary 加入角色
// @Tags 战役
// @Accept json
// @Produce json
// @Param campaign_id path string true "战役ID"
// @Param request body AddCharacterRequest true "角色信息"
// @Success 200 {object} response.Response{data=dm.CharacterState} "创建成功"
// @Failure 400 {object} response.Response "请求参数错误"
// @Failure 404 {object} response.Response "战役不存在"
// @Router /dm/campaigns/{campaign_id}/characters [post]
func (h *CampaignHandler) AddCharacter(c echo.Context) error {
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		return response.EchoBadRequest(c, h.respWriter, "战役ID不能为空")
	}

	var req AddCharacterRequest
	if err := c.Bind(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, "请求格式错误")
	}
	if err := c.Validate(&req); err != nil {
		return response.EchoBadRequest(c, h.respWriter, err.Error())
	}

	present := true
	if req.IsPresent != nil {
		present = *req.IsPresent
	}

	state, err := h.roster.AddCharacter(c.Request().Context(), campaignID, &dm.PlayerSnapshot{
		CharacterID: req.CharacterID,
		Name:        req.Name,
		Stats:       req.Stats,
		Inventory:   req.Inventory,
		Spells:      req.Spells,
		SpellSlots:  req.SpellSlots,
		IsPresent:   present,
	})
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, state)
}

// GetCharacter 读取角色
// @Summary 角色状态
// @Tags 战役
// @Produce json
// @Param character_id path string true "角色ID"
// @Success 200 {object} response.Response{data=dm.CharacterState} "获取成功"
// @Failure 404 {object} response.Response "角色不存在"
// @Router /dm/characters/{character_id} [get]
func (h *CampaignHandler) GetCharacter(c echo.Context) error {
	state, err := h.roster.Character(c.Request().Context(), c.Param("character_id"))
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	return response.EchoOK(c, h.respWriter, state)
}
