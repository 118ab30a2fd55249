package tasks

import (
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/metrics"
)

// DBStatser *sql.DB 满足
type DBStatser interface {
	Stats() sql.DBStats
}

// RedisPoolStatser *redis.Client 满足
type RedisPoolStatser interface {
	PoolStats() *redis.PoolStats
}

// PoolStatsTask 每 30 秒采样一次数据库与 Redis 连接池
type PoolStatsTask struct {
	db       DBStatser
	redis    RedisPoolStatser
	service  string
	database string
	metrics  *metrics.ResourceMetrics
	logger   log.Logger
	cron     *cron.Cron

	mu           sync.Mutex
	lastWait     int64
	lastWaitTime int64
}

// NewPoolStatsTask db 与 redis 都可以为空
func NewPoolStatsTask(db DBStatser, rdb RedisPoolStatser, service, database string, logger log.Logger) *PoolStatsTask {
	return &PoolStatsTask{
		db:       db,
		redis:    rdb,
		service:  service,
		database: database,
		metrics:  metrics.DefaultResourceMetrics,
		logger:   logger,
	}
}

// Start 启动定时任务
func (t *PoolStatsTask) Start() {
	t.cron = cron.New(cron.WithSeconds())

	// 秒 分 时 日 月 周
	_, err := t.cron.AddFunc("*/30 * * * * *", t.Collect)
	if err != nil {
		t.logger.Error("【定时任务】添加连接池采样任务失败", err)
		return
	}

	t.cron.Start()
	t.logger.Info("【定时任务】已启动 - 每30秒采样连接池")
}

// Collect 采样一次
func (t *PoolStatsTask) Collect() {
	if t.db != nil {
		stats := t.db.Stats()

		t.mu.Lock()
		waitDelta := stats.WaitCount - t.lastWait
		durationDelta := int64(stats.WaitDuration) - t.lastWaitTime
		t.lastWait = stats.WaitCount
		t.lastWaitTime = int64(stats.WaitDuration)
		t.mu.Unlock()

		if waitDelta < 0 {
			waitDelta = 0
		}
		if durationDelta < 0 {
			durationDelta = 0
		}

		t.metrics.RecordDBPoolStats(t.service, t.database,
			stats.OpenConnections, stats.InUse, stats.Idle, stats.MaxOpenConnections,
			waitDelta, time.Duration(durationDelta))
	}

	if t.redis != nil {
		ps := t.redis.PoolStats()
		if ps != nil {
			t.metrics.RecordRedisPoolStats(int(ps.TotalConns), int(ps.IdleConns), int(ps.StaleConns), t.service)
		}
	}
}

// Stop 停止定时任务
func (t *PoolStatsTask) Stop() {
	if t.cron != nil {
		ctx := t.cron.Stop()
		<-ctx.Done()
		t.logger.Info("【定时任务】连接池采样已停止")
	}
}
