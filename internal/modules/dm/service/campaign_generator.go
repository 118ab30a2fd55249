package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/modules/dm/prompt"
	"anomali-dm/internal/pkg/jsonx"
	"anomali-dm/internal/pkg/llm"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/metrics"
	pkgvalidator "anomali-dm/internal/pkg/validator"
	"anomali-dm/internal/pkg/xerrors"
	"anomali-dm/internal/repository/interfaces"
)

// GenerateRequest 生成战役请求，Persist 为 true 时把大纲保存为新战役的骨架
type GenerateRequest struct {
	Params  dm.CampaignParams
	Persist bool
	Name    string
}

// GeneratedCampaign 生成结果，未持久化时 Campaign 为空
type GeneratedCampaign struct {
	Outline  *dm.CampaignOutline `json:"outline"`
	Campaign *dm.Campaign        `json:"campaign,omitempty"`
	Strategy jsonx.Strategy      `json:"parse_strategy"`
}

// CampaignGenerator 调用模型生成世界大纲
type CampaignGenerator struct {
	repo      interfaces.CampaignRepository
	completer llm.Completer
	assembler *prompt.Assembler
	validate  *validator.Validate
	logger    log.Logger
	metrics   *metrics.DMMetrics
	timeout   time.Duration
	now       func() time.Time
}

// NewCampaignGenerator 创建生成器
func NewCampaignGenerator(repo interfaces.CampaignRepository, completer llm.Completer, logger log.Logger, timeout time.Duration) *CampaignGenerator {
	if logger == nil {
		logger = log.GetLogger()
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &CampaignGenerator{
		repo:      repo,
		completer: completer,
		assembler: prompt.MustNewAssembler(),
		validate:  pkgvalidator.NewEngine(),
		logger:    logger,
		metrics:   metrics.DefaultDMMetrics,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Generate 生成大纲，模型输出允许是宽松 JSON
func (g *CampaignGenerator) Generate(ctx context.Context, req GenerateRequest) (*GeneratedCampaign, error) {
	if err := g.validate.Struct(req.Params); err != nil {
		return nil, xerrors.NewValidationError("params", pkgvalidator.TranslateValidationError(err))
	}

	p, err := g.assembler.AssembleWorldBuilder(req.Params)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.CodeInternalError, "组装世界生成提示词失败")
	}

	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	start := g.now()
	completion, err := g.completer.Complete(completeCtx, llm.CompletionRequest{
		SystemPrompt: p.System,
		UserPrompt:   p.User,
		Temperature:  llm.Float32(0.9),
		JSONMode:     true,
	})
	g.metrics.RecordCompletion(g.completer.Name(), g.now().Sub(start))
	if err != nil {
		return nil, xerrors.NewCompletionError(g.completer.Name(), err)
	}

	var outline dm.CampaignOutline
	strategy, err := jsonx.SmartParse(stripFence(completion.Text), &outline)
	if err != nil {
		return nil, xerrors.NewCompletionError(g.completer.Name(), errors.Join(errors.New("世界大纲不是合法 JSON"), err))
	}
	if strings.TrimSpace(outline.WorldName) == "" {
		return nil, xerrors.NewCompletionError(g.completer.Name(), errors.New("世界大纲缺少 worldName"))
	}

	result := &GeneratedCampaign{Outline: &outline, Strategy: strategy}
	if !req.Persist {
		return result, nil
	}

	campaign, err := g.persist(ctx, req.Name, &outline)
	if err != nil {
		return nil, err
	}
	result.Campaign = campaign

	log.LogBusinessEvent(ctx, g.logger, "campaign_generated", "campaign", campaign.ID, map[string]interface{}{
		"world_name": outline.WorldName,
		"strategy":   string(strategy),
	})
	return result, nil
}

func (g *CampaignGenerator) persist(ctx context.Context, name string, outline *dm.CampaignOutline) (*dm.Campaign, error) {
	skeleton, err := json.Marshal(outline)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.CodeInternalError, "序列化世界大纲失败")
	}
	if strings.TrimSpace(name) == "" {
		name = outline.WorldName
	}

	campaign := &dm.Campaign{Name: name, Skeleton: skeleton}
	if err := g.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, xerrors.NewDatabaseError("create_campaign", "campaigns", err)
	}

	// 大纲里的开场记录作为日志的初始条目
	if len(outline.CampaignLog) > 0 {
		now := g.now()
		entries := make([]dm.LogEntry, 0, len(outline.CampaignLog))
		for _, line := range outline.CampaignLog {
			if strings.TrimSpace(line) == "" {
				continue
			}
			entries = append(entries, dm.NewLogEntry(line, now))
		}
		if _, err := g.repo.PutCampaignLog(ctx, campaign.ID, entries, interfaces.AnyVersion); err != nil {
			return nil, xerrors.NewDatabaseError("seed_campaign_log", "campaigns", err)
		}
	}
	return campaign, nil
}

// stripFence 去掉模型偶尔包裹的代码围栏
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
