package tasks

import (
	"github.com/robfig/cron/v3"

	"anomali-dm/internal/pkg/log"
)

// Sweeper 进程内回合缓存，turncache.Cache 满足
type Sweeper interface {
	Sweep() int
	Len() int
}

// ReplaySweepTask 没有 Redis 时定期清理进程内的过期回合记录
type ReplaySweepTask struct {
	cache  Sweeper
	logger log.Logger
	cron   *cron.Cron
}

// NewReplaySweepTask 创建清理任务
func NewReplaySweepTask(cache Sweeper, logger log.Logger) *ReplaySweepTask {
	return &ReplaySweepTask{cache: cache, logger: logger}
}

// Start 每分钟执行一次
func (t *ReplaySweepTask) Start() {
	t.cron = cron.New(cron.WithSeconds())

	_, err := t.cron.AddFunc("0 * * * * *", func() {
		t.Sweep()
	})
	if err != nil {
		t.logger.Error("【定时任务】添加回合缓存清理任务失败", err)
		return
	}

	t.cron.Start()
	t.logger.Info("【定时任务】已启动 - 每分钟清理过期回合记录")
}

// Sweep 清理一次，返回删除数量
func (t *ReplaySweepTask) Sweep() int {
	removed := t.cache.Sweep()
	if removed > 0 {
		t.logger.Debug("【定时任务】回合缓存清理完成", "removed", removed, "remaining", t.cache.Len())
	}
	return removed
}

// Stop 停止定时任务
func (t *ReplaySweepTask) Stop() {
	if t.cron != nil {
		ctx := t.cron.Stop()
		<-ctx.Done()
	}
}
