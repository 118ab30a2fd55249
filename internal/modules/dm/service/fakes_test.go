package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/llm"
	"anomali-dm/internal/repository/interfaces"
	"anomali-dm/internal/repository/memory"
)

// fakeRepo 在内存仓储上注入冲突和写入失败
type fakeRepo struct {
	*memory.Store

	mu sync.Mutex
	// 下 N 次写入返回版本冲突
	conflicts map[string]int
	putErr    map[string]error
	getErr    map[string]error
	logErr    error
	puts      int
	// 写入前回调，用于模拟并发回合
	beforePut func(characterID string)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		Store:     memory.NewStore(),
		conflicts: map[string]int{},
		putErr:    map[string]error{},
		getErr:    map[string]error{},
	}
}

func (f *fakeRepo) GetCharacter(ctx context.Context, id string) (*dm.CharacterState, error) {
	f.mu.Lock()
	err := f.getErr[id]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.GetCharacter(ctx, id)
}

func (f *fakeRepo) intercept(id string) error {
	f.mu.Lock()
	hook := f.beforePut
	f.puts++
	if err := f.putErr[id]; err != nil {
		f.mu.Unlock()
		return err
	}
	if f.conflicts[id] > 0 {
		f.conflicts[id]--
		f.mu.Unlock()
		return interfaces.ErrVersionConflict
	}
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

func (f *fakeRepo) PutCharacterInventory(ctx context.Context, id string, inv []string, v int64) (int64, error) {
	if err := f.intercept(id); err != nil {
		return 0, err
	}
	return f.Store.PutCharacterInventory(ctx, id, inv, v)
}

func (f *fakeRepo) PutCharacterSpellSlots(ctx context.Context, id string, slots dm.SpellSlots, v int64) (int64, error) {
	if err := f.intercept(id); err != nil {
		return 0, err
	}
	return f.Store.PutCharacterSpellSlots(ctx, id, slots, v)
}

func (f *fakeRepo) PutCampaignLog(ctx context.Context, id string, entries []dm.LogEntry, v int64) (int64, error) {
	if f.logErr != nil {
		return 0, f.logErr
	}
	if err := f.intercept(id); err != nil {
		return 0, err
	}
	return f.Store.PutCampaignLog(ctx, id, entries, v)
}

func (f *fakeRepo) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

// seedCampaign 创建战役 camp-1，角色 c1 与另一战役的角色 x1
func seedCampaign(t *testing.T, repo interfaces.CampaignRepository) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repo.CreateCampaign(ctx, &dm.Campaign{
		ID:       "camp-1",
		Name:     "Ashfall",
		Skeleton: json.RawMessage(`{"worldName":"Ashfall"}`),
	}))
	require.NoError(t, repo.CreateCampaign(ctx, &dm.Campaign{ID: "camp-2", Name: "Elsewhere"}))

	_, err := repo.CreateCharacter(ctx, "camp-1", &dm.PlayerSnapshot{
		CharacterID: "c1",
		Name:        "Mira",
		Inventory:   []string{"Torch", "Dagger"},
		Spells:      []string{"Shield"},
		SpellSlots:  dm.SpellSlots{1: 2, 2: 0},
		IsPresent:   true,
	})
	require.NoError(t, err)

	_, err = repo.CreateCharacter(ctx, "camp-2", &dm.PlayerSnapshot{
		CharacterID: "x1",
		Name:        "Stranger",
		Inventory:   []string{"Coin"},
	})
	require.NoError(t, err)
}

// fakeCompleter 返回预设文本并记录调用次数
type fakeCompleter struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	requests []llm.CompletionRequest
	// 调用时触发，用于模拟客户端断开
	onCall func()
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text, Provider: "fake", Model: "fake-1"}, nil
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePublisher 记录发布的事件
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}
