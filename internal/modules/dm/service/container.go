package service

import (
	"anomali-dm/internal/modules/dm/parser"
	"anomali-dm/internal/modules/dm/prompt"
	"anomali-dm/internal/pkg/config"
	"anomali-dm/internal/pkg/llm"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/markdown"
	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/pkg/notify"
	"anomali-dm/internal/repository/interfaces"
)

// ServiceContainer DM 服务容器，统一持有仓储与服务
type ServiceContainer struct {
	repo interfaces.CampaignRepository

	Applier   *StateMutationApplier
	Turns     *TurnService
	Generator *CampaignGenerator
	Roster    *RosterService
}

// ContainerDeps 外部依赖，replay 与 publisher 可以为空
type ContainerDeps struct {
	Repo      interfaces.CampaignRepository
	Completer llm.Completer
	Replay    ReplayStore
	Publisher notify.Publisher
	Logger    log.Logger
	Metrics   *metrics.DMMetrics
}

// NewServiceContainer 按配置创建全部服务
func NewServiceContainer(cfg *config.DMConfig, deps ContainerDeps) *ServiceContainer {
	if deps.Logger == nil {
		deps.Logger = log.GetLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultDMMetrics
	}

	c := &ServiceContainer{repo: deps.Repo}

	c.Applier = NewStateMutationApplier(deps.Repo, deps.Logger,
		WithConcurrencyMode(cfg.ConcurrencyMode),
		WithMaxAttempts(cfg.MaxWriteAttempts),
		WithApplierMetrics(deps.Metrics),
	)

	c.Turns = NewTurnService(TurnDeps{
		Repo:      deps.Repo,
		Completer: deps.Completer,
		Assembler: prompt.MustNewAssembler(),
		Parser:    parser.New(parser.WithLenient(cfg.ParserLenient)),
		Applier:   c.Applier,
		Renderer:  markdown.NewRenderer(),
		Replay:    deps.Replay,
		Publisher: deps.Publisher,
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
	}, TurnServiceConfig{
		LLMTimeout:   cfg.LLMTimeout,
		ApplyTimeout: cfg.ApplyTimeout,
	})

	c.Generator = NewCampaignGenerator(deps.Repo, deps.Completer, deps.Logger, cfg.LLMTimeout)
	c.Generator.metrics = deps.Metrics

	c.Roster = NewRosterService(deps.Repo, deps.Logger)

	return c
}

// Repository 返回共享的战役仓储
func (c *ServiceContainer) Repository() interfaces.CampaignRepository {
	return c.repo
}
