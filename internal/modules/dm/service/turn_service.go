// Package service DM 回合编排：提示词 -> 模型补全 -> 解析 -> 状态更新
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/modules/dm/parser"
	"anomali-dm/internal/modules/dm/prompt"
	"anomali-dm/internal/pkg/ctxkey"
	"anomali-dm/internal/pkg/llm"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/markdown"
	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/pkg/notify"
	"anomali-dm/internal/pkg/xerrors"
	"anomali-dm/internal/repository/interfaces"
)

// 回合结果标签
const (
	turnOK               = "ok"
	turnReplayed         = "replayed"
	turnInvalidInput     = "invalid_input"
	turnNotFound         = "not_found"
	turnCompletionFailed = "completion_failed"
	turnError            = "error"
)

// ReplayStore 回合幂等记录，Redis 与进程内缓存都满足该接口
type ReplayStore interface {
	Get(ctx context.Context, campaignID, turnID string) ([]byte, bool, error)
	Put(ctx context.Context, campaignID, turnID string, payload []byte) error
}

// TurnRequest 一次玩家输入
type TurnRequest struct {
	CampaignID string
	UserInput  string
	TurnID     string // 可选，非空时同一 turn_id 只调用一次模型
	PlayerID   string
}

// TurnResult 回合结果，叙述总是存在
type TurnResult struct {
	CampaignID    string            `json:"campaign_id"`
	TurnID        string            `json:"turn_id,omitempty"`
	Narration     string            `json:"response"`
	NarrationHTML string            `json:"narration_html"`
	LogUpdate     *string           `json:"log_update,omitempty"`
	Actions       dm.ActionList     `json:"actions"`
	Warnings      []dm.ParseWarning `json:"warnings,omitempty"`
	Apply         *dm.ApplyResult   `json:"apply"`
	BlockStatus   dm.BlockStatus    `json:"block_status"`
	Provider      string            `json:"provider,omitempty"`
	Model         string            `json:"model,omitempty"`
	CompletedAt   time.Time         `json:"completed_at"`
	Replayed      bool              `json:"replayed"`
}

// TurnEvent 回合完成后广播给同一战役的其他玩家
type TurnEvent struct {
	CampaignID string             `json:"campaign_id"`
	PlayerID   string             `json:"player_id,omitempty"`
	TurnID     string             `json:"turn_id,omitempty"`
	UserInput  string             `json:"user_input"`
	Narration  string             `json:"narration"`
	LogUpdate  *string            `json:"log_update,omitempty"`
	Outcomes   []dm.ActionOutcome `json:"outcomes"`
	Timestamp  string             `json:"timestamp"`
}

// TurnServiceConfig 超时配置
type TurnServiceConfig struct {
	LLMTimeout   time.Duration
	ApplyTimeout time.Duration
}

// TurnService 回合编排服务
type TurnService struct {
	repo      interfaces.CampaignRepository
	completer llm.Completer
	assembler *prompt.Assembler
	parser    *parser.Parser
	applier   *StateMutationApplier
	renderer  *markdown.Renderer
	replay    ReplayStore
	publisher notify.Publisher
	logger    log.Logger
	metrics   *metrics.DMMetrics
	cfg       TurnServiceConfig
	now       func() time.Time
}

// TurnDeps 回合服务依赖，Replay/Publisher/Renderer 可以为空
type TurnDeps struct {
	Repo      interfaces.CampaignRepository
	Completer llm.Completer
	Assembler *prompt.Assembler
	Parser    *parser.Parser
	Applier   *StateMutationApplier
	Renderer  *markdown.Renderer
	Replay    ReplayStore
	Publisher notify.Publisher
	Logger    log.Logger
	Metrics   *metrics.DMMetrics
}

// NewTurnService 创建回合服务
func NewTurnService(deps TurnDeps, cfg TurnServiceConfig) *TurnService {
	s := &TurnService{
		repo:      deps.Repo,
		completer: deps.Completer,
		assembler: deps.Assembler,
		parser:    deps.Parser,
		applier:   deps.Applier,
		renderer:  deps.Renderer,
		replay:    deps.Replay,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		cfg:       cfg,
		now:       time.Now,
	}
	if s.logger == nil {
		s.logger = log.GetLogger()
	}
	if s.metrics == nil {
		s.metrics = metrics.DefaultDMMetrics
	}
	if s.assembler == nil {
		s.assembler = prompt.MustNewAssembler()
	}
	if s.parser == nil {
		s.parser = parser.New()
	}
	if s.applier == nil {
		s.applier = NewStateMutationApplier(s.repo, s.logger, WithApplierMetrics(s.metrics))
	}
	if s.publisher == nil {
		s.publisher = notify.NopPublisher{}
	}
	if s.cfg.LLMTimeout <= 0 {
		s.cfg.LLMTimeout = 60 * time.Second
	}
	if s.cfg.ApplyTimeout <= 0 {
		s.cfg.ApplyTimeout = 15 * time.Second
	}
	return s
}

// TakeTurn 执行一个完整回合。
// 只有输入错误、战役不存在和模型调用失败会返回错误；状态更新的问题记录在结果中。
func (s *TurnService) TakeTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := s.now()

	req.CampaignID = strings.TrimSpace(req.CampaignID)
	req.TurnID = strings.TrimSpace(req.TurnID)
	if req.CampaignID == "" {
		s.metrics.RecordTurn(turnInvalidInput, s.now().Sub(start))
		return nil, xerrors.NewValidationError("campaign_id", "campaign_id 不能为空")
	}
	if strings.TrimSpace(req.UserInput) == "" {
		s.metrics.RecordTurn(turnInvalidInput, s.now().Sub(start))
		return nil, xerrors.NewEmptyInputError().WithCampaign(req.CampaignID, req.TurnID)
	}

	ctx = ctxkey.WithTurn(ctx, req.CampaignID, req.PlayerID, req.TurnID)

	if cached, ok := s.lookupReplay(ctx, req); ok {
		s.metrics.RecordTurn(turnReplayed, s.now().Sub(start))
		return cached, nil
	}

	cc, err := s.repo.GetCampaignContext(ctx, req.CampaignID)
	if errors.Is(err, interfaces.ErrCampaignNotFound) {
		s.metrics.RecordTurn(turnNotFound, s.now().Sub(start))
		return nil, xerrors.NewCampaignNotFoundError(req.CampaignID)
	}
	if err != nil {
		s.metrics.RecordTurn(turnError, s.now().Sub(start))
		return nil, xerrors.NewDatabaseError("get_campaign_context", "campaigns", err).
			WithCampaign(req.CampaignID, req.TurnID)
	}

	p, err := s.assembler.Assemble(cc, req.UserInput)
	if err != nil {
		s.metrics.RecordTurn(turnInvalidInput, s.now().Sub(start))
		return nil, err
	}

	// 模型请求发出后，即使客户端断开也要把回合走完
	detached := context.WithoutCancel(ctx)

	completion, err := s.complete(detached, p)
	if err != nil {
		s.metrics.RecordTurn(turnCompletionFailed, s.now().Sub(start))
		appErr := xerrors.NewCompletionError(s.completer.Name(), err).WithCampaign(req.CampaignID, req.TurnID)
		log.LogAppError(ctx, s.logger, "模型补全失败", appErr)
		return nil, appErr
	}

	resp := s.parser.Parse(completion.Text)
	s.recordParse(ctx, resp)

	applyCtx, cancel := context.WithTimeout(detached, s.cfg.ApplyTimeout)
	applied := s.applier.Apply(applyCtx, req.CampaignID, resp)
	cancel()

	result := &TurnResult{
		CampaignID:    req.CampaignID,
		TurnID:        req.TurnID,
		Narration:     resp.Narration,
		NarrationHTML: s.render(ctx, resp.Narration),
		LogUpdate:     resp.LogUpdate,
		Actions:       resp.Actions,
		Warnings:      resp.Warnings,
		Apply:         applied,
		BlockStatus:   resp.BlockStatus,
		Provider:      completion.Provider,
		Model:         completion.Model,
		CompletedAt:   s.now().UTC(),
	}

	s.storeReplay(detached, req, result)
	s.publish(detached, req, result)

	log.LogBusinessEvent(ctx, s.logger, "dm_turn_completed", "campaign", req.CampaignID, map[string]interface{}{
		"block_status": string(resp.BlockStatus),
		"actions":      len(resp.Actions),
		"applied":      applied.Applied(),
		"skipped":      applied.Skipped(),
		"failed":       applied.Failed(),
		"warnings":     len(resp.Warnings),
	})
	s.metrics.RecordTurn(turnOK, s.now().Sub(start))
	return result, nil
}

func (s *TurnService) complete(ctx context.Context, p *prompt.Prompt) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	start := s.now()
	completion, err := s.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.System,
		UserPrompt:   p.User,
	})
	s.metrics.RecordCompletion(s.completer.Name(), s.now().Sub(start))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(completion.Text) == "" {
		return nil, llm.ErrEmptyCompletion
	}
	return completion, nil
}

// recordParse 解析问题只做观测，不影响回合
func (s *TurnService) recordParse(ctx context.Context, resp *dm.DMResponse) {
	s.metrics.RecordUpdateBlock(string(resp.BlockStatus))
	for _, w := range resp.Warnings {
		s.metrics.RecordParseWarning(string(w.Kind))
		appErr := xerrors.FromCode(xerrors.ErrorCode(w.Code)).
			WithMetadata("kind", string(w.Kind)).
			WithMetadata("index", w.Index).
			WithMetadata("detail", w.Message)
		log.LogAppError(ctx, s.logger, "更新块警告", appErr)
	}
}

func (s *TurnService) render(ctx context.Context, narration string) string {
	if s.renderer == nil {
		return ""
	}
	html, err := s.renderer.Render(narration)
	if err != nil {
		s.logger.WarnContext(ctx, "叙述渲染失败", log.Any("error", err))
		return ""
	}
	return html
}

func (s *TurnService) lookupReplay(ctx context.Context, req TurnRequest) (*TurnResult, bool) {
	if s.replay == nil || req.TurnID == "" {
		return nil, false
	}
	data, ok, err := s.replay.Get(ctx, req.CampaignID, req.TurnID)
	if err != nil {
		s.logger.WarnContext(ctx, "读取回合幂等记录失败", log.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var cached TurnResult
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.WarnContext(ctx, "回合幂等记录损坏", log.Any("error", err))
		return nil, false
	}
	cached.Replayed = true
	return &cached, true
}

func (s *TurnService) storeReplay(ctx context.Context, req TurnRequest, result *TurnResult) {
	if s.replay == nil || req.TurnID == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.WarnContext(ctx, "序列化回合结果失败", log.Any("error", err))
		return
	}
	if err := s.replay.Put(ctx, req.CampaignID, req.TurnID, data); err != nil {
		s.logger.WarnContext(ctx, "写入回合幂等记录失败", log.Any("error", err))
	}
}

func (s *TurnService) publish(ctx context.Context, req TurnRequest, result *TurnResult) {
	event := TurnEvent{
		CampaignID: req.CampaignID,
		PlayerID:   req.PlayerID,
		TurnID:     req.TurnID,
		UserInput:  req.UserInput,
		Narration:  result.Narration,
		LogUpdate:  result.LogUpdate,
		Outcomes:   result.Apply.Outcomes,
		Timestamp:  result.CompletedAt.Format(dm.LogTimestampLayout),
	}
	if err := s.publisher.Publish(ctx, notify.TurnSubject(req.CampaignID), event); err != nil {
		appErr := xerrors.NewWithError(xerrors.CodeMessageQueueError, "发布回合事件失败", err)
		log.LogAppError(ctx, s.logger, "发布回合事件失败", appErr)
	}
}

// CampaignContext 返回战役快照
func (s *TurnService) CampaignContext(ctx context.Context, campaignID string) (*dm.CampaignContext, error) {
	cc, err := s.repo.GetCampaignContext(ctx, campaignID)
	if errors.Is(err, interfaces.ErrCampaignNotFound) {
		return nil, xerrors.NewCampaignNotFoundError(campaignID)
	}
	if err != nil {
		return nil, xerrors.NewDatabaseError("get_campaign_context", "campaigns", err)
	}
	return cc, nil
}

// CampaignLog 返回战役日志
func (s *TurnService) CampaignLog(ctx context.Context, campaignID string) (*dm.CampaignLog, error) {
	entries, err := s.repo.GetCampaignLog(ctx, campaignID)
	if errors.Is(err, interfaces.ErrCampaignNotFound) {
		return nil, xerrors.NewCampaignNotFoundError(campaignID)
	}
	if err != nil {
		return nil, xerrors.NewDatabaseError("get_campaign_log", "campaigns", err)
	}
	return entries, nil
}
