package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/jsonx"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/xerrors"
	"anomali-dm/internal/repository/memory"
)

const outlineJSON = `{
  "worldName": "Ashfall",
  "summary": "A realm under a sky of cinders.",
  "majorNPCs": ["Queen Vey"],
  "hooks": ["The ember crown is missing"],
  "towns": ["Cinderford"],
  "cities": [], "villages": [], "factions": ["The Ash Wardens"],
  "geography": [], "climates": [], "religions": [], "beliefSystems": [],
  "magicLaws": "Magic burns the caster.",
  "politicalStructures": [], "majorConflicts": [], "pointsOfInterest": [],
  "campaignLog": ["The party meets in Cinderford."]
}`

var validParams = dm.CampaignParams{Tone: "dark", Theme: "intrigue", TrackRations: true}

func TestGenerateOutline(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		strategy jsonx.Strategy
	}{
		{name: "标准JSON", text: outlineJSON, strategy: jsonx.StrategyStrict},
		{name: "带代码围栏", text: "```json\n" + outlineJSON + "\n```", strategy: jsonx.StrategyStrict},
		{name: "尾随逗号", text: `{"worldName": "Ashfall", "hooks": ["a", "b",],}`, strategy: jsonx.StrategyRepair},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{text: tt.text}
			g := NewCampaignGenerator(memory.NewStore(), completer, log.NewNopLogger(), time.Second)

			got, err := g.Generate(context.Background(), GenerateRequest{Params: validParams})
			require.NoError(t, err)
			assert.Equal(t, "Ashfall", got.Outline.WorldName)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Nil(t, got.Campaign)

			require.Len(t, completer.requests, 1)
			assert.True(t, completer.requests[0].JSONMode)
		})
	}
}

func TestGeneratePersistsCampaign(t *testing.T) {
	store := memory.NewStore()
	g := NewCampaignGenerator(store, &fakeCompleter{text: outlineJSON}, log.NewNopLogger(), time.Second)
	g.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	got, err := g.Generate(ctx, GenerateRequest{Params: validParams, Persist: true})
	require.NoError(t, err)
	require.NotNil(t, got.Campaign)
	assert.Equal(t, "Ashfall", got.Campaign.Name)
	assert.NotEmpty(t, got.Campaign.ID)

	cc, err := store.GetCampaignContext(ctx, got.Campaign.ID)
	require.NoError(t, err)

	var skeleton dm.CampaignOutline
	require.NoError(t, json.Unmarshal(cc.Skeleton, &skeleton))
	assert.Equal(t, "Magic burns the caster.", skeleton.MagicLaws)

	require.Len(t, cc.Log, 1)
	assert.Equal(t, "The party meets in Cinderford.", cc.Log[0].Entry)
	assert.Equal(t, "2025-06-01T12:30:00.000Z", cc.Log[0].Timestamp)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name   string
		params dm.CampaignParams
		text   string
		err    error
		code   xerrors.ErrorCode
		called bool
	}{
		{name: "缺少基调", params: dm.CampaignParams{Theme: "intrigue"}, code: xerrors.CodeInvalidParams},
		{name: "模型报错", params: validParams, err: errors.New("timeout"), code: xerrors.CodeDMCompletionFailure, called: true},
		{name: "输出不可解析", params: validParams, text: "I cannot help with that.", code: xerrors.CodeDMCompletionFailure, called: true},
		{name: "缺少世界名", params: validParams, text: `{"summary": "x"}`, code: xerrors.CodeDMCompletionFailure, called: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{text: tt.text, err: tt.err}
			g := NewCampaignGenerator(memory.NewStore(), completer, log.NewNopLogger(), time.Second)

			_, err := g.Generate(context.Background(), GenerateRequest{Params: tt.params, Persist: true})
			require.Error(t, err)
			assert.Equal(t, tt.code, xerrors.CodeOf(err))
			assert.Equal(t, tt.called, completer.callCount() > 0)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, stripFence("```\n{\"a\":1}```"))
}
