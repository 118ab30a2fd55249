package service

import (
	"context"
	"errors"
	"time"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/config"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/pkg/xerrors"
	"anomali-dm/internal/repository/interfaces"
)

// 写入种类，用于冲突指标
const (
	writeInventory   = "inventory"
	writeSpellSlots  = "spell_slots"
	writeCampaignLog = "campaign_log"
)

// StateMutationApplier 按顺序执行更新动作，单个动作失败不影响其余动作
type StateMutationApplier struct {
	repo        interfaces.CampaignRepository
	logger      log.Logger
	metrics     *metrics.DMMetrics
	optimistic  bool
	maxAttempts int
	now         func() time.Time
}

// ApplierOption 执行器选项
type ApplierOption func(*StateMutationApplier)

// WithConcurrencyMode optimistic 为条件写入，last_writer_wins 为无条件写入
func WithConcurrencyMode(mode string) ApplierOption {
	return func(a *StateMutationApplier) {
		a.optimistic = mode != config.ConcurrencyLastWriterWins
	}
}

// WithMaxAttempts 版本冲突时的最大尝试次数
func WithMaxAttempts(n int) ApplierOption {
	return func(a *StateMutationApplier) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) ApplierOption {
	return func(a *StateMutationApplier) {
		a.now = now
	}
}

// WithApplierMetrics 替换指标实例
func WithApplierMetrics(m *metrics.DMMetrics) ApplierOption {
	return func(a *StateMutationApplier) {
		a.metrics = m
	}
}

// NewStateMutationApplier 创建执行器，默认乐观并发、最多尝试 3 次
func NewStateMutationApplier(repo interfaces.CampaignRepository, logger log.Logger, opts ...ApplierOption) *StateMutationApplier {
	a := &StateMutationApplier{
		repo:        repo,
		logger:      logger,
		metrics:     metrics.DefaultDMMetrics,
		optimistic:  true,
		maxAttempts: 3,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.GetLogger()
	}
	return a
}

// Apply 执行动作并追加日志，结果全部记录在 ApplyResult 中，不返回错误
func (a *StateMutationApplier) Apply(ctx context.Context, campaignID string, resp *dm.DMResponse) *dm.ApplyResult {
	result := &dm.ApplyResult{Outcomes: make([]dm.ActionOutcome, 0, len(resp.Actions))}

	for i, action := range resp.Actions {
		outcome := a.applyAction(ctx, campaignID, i, action)
		a.report(ctx, campaignID, outcome)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if resp.HasLogUpdate() {
		result.Log = a.appendLog(ctx, campaignID, *resp.LogUpdate)
	}
	return result
}

// applyAction 读取-计算-条件写入，冲突时重新读取
func (a *StateMutationApplier) applyAction(ctx context.Context, campaignID string, index int, action dm.UpdateAction) dm.ActionOutcome {
	outcome := dm.ActionOutcome{
		Index:       index,
		Type:        action.Type(),
		CharacterID: action.Character(),
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		outcome.Attempts = attempt
		if err := ctx.Err(); err != nil {
			return failed(outcome, dm.ReasonCanceled, err)
		}

		state, err := a.repo.GetCharacter(ctx, action.Character())
		if errors.Is(err, interfaces.ErrCharacterNotFound) {
			return skipped(outcome, dm.ReasonCharacterNotFound)
		}
		if err != nil {
			return failed(outcome, dm.ReasonPersistence,
				xerrors.NewPersistenceError("get_character", action.Character(), err))
		}
		if state.CampaignID != campaignID {
			return skipped(outcome, dm.ReasonOtherCampaign)
		}

		kind, write, ok := a.plan(action, state)
		if !ok {
			return skipped(outcome, dm.ReasonNoSlotAvailable)
		}

		err = write(ctx, a.expected(state.Version))
		switch {
		case err == nil:
			outcome.Status = dm.OutcomeApplied
			return outcome
		case errors.Is(err, interfaces.ErrVersionConflict):
			a.metrics.RecordWriteConflict(kind)
			a.logger.DebugContext(ctx, "状态写入版本冲突，重新读取",
				log.String("character_id", action.Character()),
				log.Int("attempt", attempt))
			continue
		case errors.Is(err, interfaces.ErrCharacterNotFound):
			return skipped(outcome, dm.ReasonCharacterNotFound)
		default:
			return failed(outcome, dm.ReasonPersistence,
				xerrors.NewPersistenceError("put_"+kind, action.Character(), err))
		}
	}

	appErr := xerrors.FromCode(xerrors.CodeDMVersionConflict).
		WithMetadata("character_id", action.Character())
	return failed(outcome, dm.ReasonVersionConflict, appErr)
}

type writeFunc func(ctx context.Context, expectedVersion int64) error

// plan 计算新状态，返回写入种类和写入函数；法术位不足时 ok 为 false
func (a *StateMutationApplier) plan(action dm.UpdateAction, state *dm.CharacterState) (string, writeFunc, bool) {
	switch act := action.(type) {
	case dm.UpdateInventoryAction:
		next := dm.ApplyInventoryChange(state.Inventory, act.Add, act.Remove)
		return writeInventory, func(ctx context.Context, expected int64) error {
			_, err := a.repo.PutCharacterInventory(ctx, state.ID, next, expected)
			return err
		}, true
	case dm.UseSpellSlotAction:
		next, spent := dm.SpendSlot(state.SpellSlots, act.SpellLevel)
		if !spent {
			return writeSpellSlots, nil, false
		}
		return writeSpellSlots, func(ctx context.Context, expected int64) error {
			_, err := a.repo.PutCharacterSpellSlots(ctx, state.ID, next, expected)
			return err
		}, true
	}
	// 解析器只产出以上两种动作
	return "", func(context.Context, int64) error { return errors.New("unsupported action") }, true
}

// appendLog 读取-追加-写回战役日志
func (a *StateMutationApplier) appendLog(ctx context.Context, campaignID, text string) *dm.LogOutcome {
	entry := dm.NewLogEntry(text, a.now())
	outcome := &dm.LogOutcome{Entry: &entry}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		outcome.Attempts = attempt
		if err := ctx.Err(); err != nil {
			return a.logFailed(ctx, campaignID, outcome, dm.ReasonCanceled, err)
		}

		current, err := a.repo.GetCampaignLog(ctx, campaignID)
		if errors.Is(err, interfaces.ErrCampaignNotFound) {
			outcome.Status = dm.OutcomeSkipped
			outcome.Reason = dm.ReasonCampaignNotFound
			return outcome
		}
		if err != nil {
			return a.logFailed(ctx, campaignID, outcome, dm.ReasonPersistence,
				xerrors.NewPersistenceError("get_campaign_log", "", err))
		}

		entries := make([]dm.LogEntry, 0, len(current.Entries)+1)
		entries = append(entries, current.Entries...)
		entries = append(entries, entry)

		_, err = a.repo.PutCampaignLog(ctx, campaignID, entries, a.expected(current.Version))
		switch {
		case err == nil:
			outcome.Status = dm.OutcomeApplied
			a.metrics.RecordAction("logUpdate", string(dm.OutcomeApplied))
			return outcome
		case errors.Is(err, interfaces.ErrVersionConflict):
			a.metrics.RecordWriteConflict(writeCampaignLog)
			continue
		default:
			return a.logFailed(ctx, campaignID, outcome, dm.ReasonPersistence,
				xerrors.NewPersistenceError("put_campaign_log", "", err))
		}
	}

	return a.logFailed(ctx, campaignID, outcome, dm.ReasonVersionConflict,
		xerrors.FromCode(xerrors.CodeDMVersionConflict))
}

func (a *StateMutationApplier) logFailed(ctx context.Context, campaignID string, outcome *dm.LogOutcome, reason string, err error) *dm.LogOutcome {
	outcome.Status = dm.OutcomeFailed
	outcome.Reason = reason
	outcome.Err = err
	outcome.Error = err.Error()
	a.metrics.RecordAction("logUpdate", string(dm.OutcomeFailed))
	a.logger.ErrorContext(ctx, "战役日志追加失败",
		log.Any("error", err),
		log.String("campaign_id", campaignID),
		log.String("reason", reason),
		log.Int("attempts", outcome.Attempts))
	return outcome
}

func (a *StateMutationApplier) expected(version int64) int64 {
	if a.optimistic {
		return version
	}
	return interfaces.AnyVersion
}

// report 记录指标和日志
func (a *StateMutationApplier) report(ctx context.Context, campaignID string, o dm.ActionOutcome) {
	a.metrics.RecordAction(string(o.Type), string(o.Status))

	attrs := []any{
		log.String("campaign_id", campaignID),
		log.Int("index", o.Index),
		log.String("type", string(o.Type)),
		log.String("character_id", o.CharacterID),
	}
	switch o.Status {
	case dm.OutcomeFailed:
		a.logger.ErrorContext(ctx, "状态更新动作失败",
			append(attrs, log.Any("error", o.Err), log.String("reason", o.Reason), log.Int("attempts", o.Attempts))...)
	case dm.OutcomeSkipped:
		a.logger.InfoContext(ctx, "状态更新动作已跳过", append(attrs, log.String("reason", o.Reason))...)
	default:
		a.logger.DebugContext(ctx, "状态更新动作已执行", attrs...)
	}
}

func skipped(o dm.ActionOutcome, reason string) dm.ActionOutcome {
	o.Status = dm.OutcomeSkipped
	o.Reason = reason
	return o
}

func failed(o dm.ActionOutcome, reason string, err error) dm.ActionOutcome {
	o.Status = dm.OutcomeFailed
	o.Reason = reason
	o.Err = err
	o.Error = err.Error()
	return o
}
