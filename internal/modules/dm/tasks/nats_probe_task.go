package tasks

import (
	"github.com/robfig/cron/v3"

	"anomali-dm/internal/pkg/log"
	pkgnats "anomali-dm/internal/pkg/nats"
)

// NATSProbeTask 每 10 秒检查一次 NATS 连接，状态变化时记录日志
type NATSProbeTask struct {
	checker *pkgnats.HealthChecker
	logger  log.Logger
	cron    *cron.Cron
}

// NewNATSProbeTask 创建 NATS 探测任务
func NewNATSProbeTask(checker *pkgnats.HealthChecker, logger log.Logger) *NATSProbeTask {
	return &NATSProbeTask{checker: checker, logger: logger}
}

// Start 启动定时任务
func (t *NATSProbeTask) Start() {
	t.cron = cron.New(cron.WithSeconds())

	_, err := t.cron.AddFunc("*/10 * * * * *", func() { t.Probe() })
	if err != nil {
		t.logger.Error("【定时任务】添加 NATS 探测任务失败", err)
		return
	}

	t.cron.Start()
	t.logger.Info("【定时任务】已启动 - 每10秒探测 NATS")
}

// Probe 执行一次探测
func (t *NATSProbeTask) Probe() bool {
	healthy, changed := t.checker.Check()
	if changed {
		if healthy {
			t.logger.Info("【定时任务】NATS 连接已恢复，回合事件恢复广播")
		} else {
			t.logger.Warn("【定时任务】NATS 连接不可用，其他玩家暂时收不到回合事件")
		}
	}
	return healthy
}

// Stop 停止定时任务
func (t *NATSProbeTask) Stop() {
	if t.cron != nil {
		ctx := t.cron.Stop()
		<-ctx.Done()
	}
}
