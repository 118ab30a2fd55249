package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/markdown"
	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/pkg/notify"
	"anomali-dm/internal/pkg/turncache"
	"anomali-dm/internal/pkg/xerrors"
)

const turnReply = "The goblin drops a rusty key as it flees.\n\n" +
	"```json\n" +
	`{"logUpdate": "Mira found a rusty key.", "actions": [` +
	`{"type": "updateInventory", "characterId": "c1", "add": ["Rusty Key"], "remove": ["Torch"]},` +
	`{"type": "useSpellSlot", "characterId": "c1", "spellLevel": 1}]}` +
	"\n```"

type turnFixture struct {
	svc       *TurnService
	repo      *fakeRepo
	completer *fakeCompleter
	publisher *fakePublisher
	metrics   *metrics.DMMetrics
}

func newTurnFixture(t *testing.T, reply string) *turnFixture {
	t.Helper()
	repo := newFakeRepo()
	seedCampaign(t, repo)

	f := &turnFixture{
		repo:      repo,
		completer: &fakeCompleter{text: reply},
		publisher: &fakePublisher{},
		metrics:   metrics.NewDMMetricsWithRegistry("test", prometheus.NewRegistry()),
	}
	logger := log.NewNopLogger()
	applier := NewStateMutationApplier(repo, logger,
		WithClock(func() time.Time { return fixedNow }),
		WithApplierMetrics(f.metrics))

	f.svc = NewTurnService(TurnDeps{
		Repo:      repo,
		Completer: f.completer,
		Applier:   applier,
		Renderer:  markdown.NewRenderer(),
		Replay:    turncache.New(time.Hour, logger),
		Publisher: f.publisher,
		Logger:    logger,
		Metrics:   f.metrics,
	}, TurnServiceConfig{LLMTimeout: time.Second, ApplyTimeout: time.Second})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestTakeTurnEndToEnd(t *testing.T) {
	f := newTurnFixture(t, turnReply)
	ctx := context.Background()

	result, err := f.svc.TakeTurn(ctx, TurnRequest{CampaignID: "camp-1", UserInput: "I chase the goblin", PlayerID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, "The goblin drops a rusty key as it flees.", result.Narration)
	assert.NotContains(t, result.Narration, "```")
	assert.Contains(t, result.NarrationHTML, "<p>The goblin drops a rusty key as it flees.</p>")
	assert.Equal(t, dm.BlockParsed, result.BlockStatus)
	require.NotNil(t, result.LogUpdate)
	assert.Equal(t, "Mira found a rusty key.", *result.LogUpdate)
	assert.Equal(t, 2, result.Apply.Applied())
	assert.Equal(t, "fake", result.Provider)
	assert.False(t, result.Replayed)

	c, err := f.repo.GetCharacter(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dagger", "Rusty Key"}, c.Inventory)
	assert.Equal(t, 1, c.SpellSlots[1])

	logs, err := f.repo.GetCampaignLog(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, logs.Entries, 1)
	assert.Equal(t, "Mira found a rusty key.", logs.Entries[0].Entry)
	assert.Equal(t, "2025-06-01T12:30:00.000Z", logs.Entries[0].Timestamp)

	// 提示词包含玩家输入和角色快照
	require.Len(t, f.completer.requests, 1)
	assert.Contains(t, f.completer.requests[0].UserPrompt, "I chase the goblin")
	assert.Contains(t, f.completer.requests[0].SystemPrompt, `"character_id": "c1"`)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TurnsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UpdateBlocksTotal.WithLabelValues("parsed")))
}

func TestTakeTurnWithoutBlockLeavesStateUntouched(t *testing.T) {
	f := newTurnFixture(t, "The tavern is quiet tonight.")

	result, err := f.svc.TakeTurn(context.Background(), TurnRequest{CampaignID: "camp-1", UserInput: "I listen"})
	require.NoError(t, err)

	assert.Equal(t, "The tavern is quiet tonight.", result.Narration)
	assert.Equal(t, dm.BlockNone, result.BlockStatus)
	assert.Empty(t, result.Apply.Outcomes)
	assert.Nil(t, result.Apply.Log)
	assert.Zero(t, f.repo.putCount())
}

func TestTakeTurnMalformedBlockStillNarrates(t *testing.T) {
	f := newTurnFixture(t, "You rest.\n```json\n{\"logUpdate\": \n```")

	result, err := f.svc.TakeTurn(context.Background(), TurnRequest{CampaignID: "camp-1", UserInput: "I rest"})
	require.NoError(t, err)

	assert.Equal(t, dm.BlockMalformed, result.BlockStatus)
	assert.Contains(t, result.Narration, "You rest.")
	assert.Zero(t, f.repo.putCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ParseWarnings.WithLabelValues(string(dm.WarnMalformedBlock))))
}

func TestTakeTurnRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  TurnRequest
		code xerrors.ErrorCode
	}{
		{name: "空输入", req: TurnRequest{CampaignID: "camp-1", UserInput: ""}, code: xerrors.CodeDMEmptyUserInput},
		{name: "纯空白输入", req: TurnRequest{CampaignID: "camp-1", UserInput: " \n\t "}, code: xerrors.CodeDMEmptyUserInput},
		{name: "缺少战役", req: TurnRequest{UserInput: "hello"}, code: xerrors.CodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTurnFixture(t, turnReply)

			_, err := f.svc.TakeTurn(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, xerrors.CodeOf(err))
			assert.Zero(t, f.completer.callCount())
			assert.Zero(t, f.repo.putCount())
		})
	}
}

func TestTakeTurnCampaignNotFound(t *testing.T) {
	f := newTurnFixture(t, turnReply)

	_, err := f.svc.TakeTurn(context.Background(), TurnRequest{CampaignID: "missing", UserInput: "hello"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeDMCampaignNotFound, xerrors.CodeOf(err))
	assert.Zero(t, f.completer.callCount())
}

func TestTakeTurnCompletionFailure(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{name: "模型报错", err: errors.New("upstream 503")},
		{name: "模型返回空白", text: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTurnFixture(t, tt.text)
			f.completer.err = tt.err

			result, err := f.svc.TakeTurn(context.Background(), TurnRequest{CampaignID: "camp-1", UserInput: "hello"})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, xerrors.CodeDMCompletionFailure, xerrors.CodeOf(err))
			assert.Equal(t, 502, xerrors.GetHTTPStatus(xerrors.CodeOf(err)))
			assert.Zero(t, f.repo.putCount())
			assert.Empty(t, f.publisher.subjects)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TurnsTotal.WithLabelValues("completion_failed")))
		})
	}
}

func TestTakeTurnReplaysSameTurnID(t *testing.T) {
	f := newTurnFixture(t, turnReply)
	ctx := context.Background()
	req := TurnRequest{CampaignID: "camp-1", UserInput: "I chase the goblin", TurnID: "turn-1"}

	first, err := f.svc.TakeTurn(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.TakeTurn(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 1, f.completer.callCount())
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Narration, second.Narration)

	// 重放不会再次扣减
	c, err := f.repo.GetCharacter(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.SpellSlots[1])
	assert.Equal(t, []string{"Dagger", "Rusty Key"}, c.Inventory)

	_, err = f.svc.TakeTurn(ctx, TurnRequest{CampaignID: "camp-1", UserInput: "again", TurnID: "turn-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.completer.callCount())
}

func TestTakeTurnPublishesEvent(t *testing.T) {
	f := newTurnFixture(t, turnReply)

	_, err := f.svc.TakeTurn(context.Background(), TurnRequest{
		CampaignID: "camp-1", UserInput: "I chase the goblin", PlayerID: "p1", TurnID: "turn-9",
	})
	require.NoError(t, err)

	require.Len(t, f.publisher.subjects, 1)
	assert.Equal(t, notify.TurnSubject("camp-1"), f.publisher.subjects[0])

	var event TurnEvent
	require.NoError(t, json.Unmarshal(f.publisher.payloads[0], &event))
	assert.Equal(t, "camp-1", event.CampaignID)
	assert.Equal(t, "p1", event.PlayerID)
	assert.Equal(t, "turn-9", event.TurnID)
	assert.Equal(t, "I chase the goblin", event.UserInput)
	assert.Len(t, event.Outcomes, 2)
	assert.Equal(t, "2025-06-01T12:30:00.000Z", event.Timestamp)
}

func TestTakeTurnPublishFailureDoesNotFailTurn(t *testing.T) {
	f := newTurnFixture(t, turnReply)
	f.publisher.err = errors.New("nats down")

	result, err := f.svc.TakeTurn(context.Background(), TurnRequest{CampaignID: "camp-1", UserInput: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Apply.Applied())
}

func TestTakeTurnPersistenceFailureIsReportedNotRaised(t *testing.T) {
	f := newTurnFixture(t, turnReply)
	f.repo.putErr["c1"] = errors.New("disk full")

	result, err := f.svc.TakeTurn(context.Background(), TurnRequest{CampaignID: "camp-1", UserInput: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "The goblin drops a rusty key as it flees.", result.Narration)
	assert.Equal(t, 2, result.Apply.Failed())
	require.NotNil(t, result.Apply.Log)
	assert.Equal(t, dm.OutcomeApplied, result.Apply.Log.Status)
}

func TestTakeTurnCompletesAfterClientCancel(t *testing.T) {
	f := newTurnFixture(t, turnReply)
	ctx, cancel := context.WithCancel(context.Background())
	f.completer.onCall = cancel

	result, err := f.svc.TakeTurn(ctx, TurnRequest{CampaignID: "camp-1", UserInput: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Apply.Applied())
}

func TestCampaignQueries(t *testing.T) {
	f := newTurnFixture(t, turnReply)
	ctx := context.Background()

	cc, err := f.svc.CampaignContext(ctx, "camp-1")
	require.NoError(t, err)
	assert.True(t, cc.HasCharacter("c1"))

	_, err = f.svc.CampaignContext(ctx, "missing")
	assert.Equal(t, xerrors.CodeDMCampaignNotFound, xerrors.CodeOf(err))

	_, err = f.svc.CampaignLog(ctx, "missing")
	assert.Equal(t, xerrors.CodeDMCampaignNotFound, xerrors.CodeOf(err))
}
