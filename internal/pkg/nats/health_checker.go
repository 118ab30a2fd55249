// File: internal/pkg/nats/health_checker.go
package nats

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn 健康检查需要的连接能力
type Conn interface {
	IsConnected() bool
	IsClosed() bool
}

var _ Conn = (*nats.Conn)(nil)

// HealthChecker NATS连接健康检查器，检查由定时任务或 Start 驱动
type HealthChecker struct {
	conn      Conn
	isHealthy bool
	mutex     sync.RWMutex
	stopCh    chan struct{}
	interval  time.Duration
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(conn Conn, checkInterval time.Duration) *HealthChecker {
	if checkInterval <= 0 {
		checkInterval = 10 * time.Second // 默认10秒检查一次
	}

	return &HealthChecker{
		conn:      conn,
		isHealthy: true,
		stopCh:    make(chan struct{}),
		interval:  checkInterval,
	}
}

// Start 启动健康检查
func (hc *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hc.stopCh:
			return
		case <-ticker.C:
			hc.checkHealth()
		}
	}
}

// Stop 停止健康检查
func (hc *HealthChecker) Stop() {
	close(hc.stopCh)
}

// IsHealthy 检查连接是否健康
func (hc *HealthChecker) IsHealthy() bool {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()
	return hc.isHealthy
}

// Check 执行一次健康检查并返回结果，状态变化时返回 changed=true
func (hc *HealthChecker) Check() (healthy bool, changed bool) {
	healthy = hc.conn != nil && hc.conn.IsConnected() && !hc.conn.IsClosed()

	hc.mutex.Lock()
	changed = hc.isHealthy != healthy
	hc.isHealthy = healthy
	hc.mutex.Unlock()
	return healthy, changed
}

func (hc *HealthChecker) checkHealth() {
	hc.Check()
}

// WaitForHealthy 等待连接恢复健康
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, maxWait time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
