// File: internal/pkg/metrics/registry.go
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace 所有 DM 指标的前缀
const Namespace = "dm"

const defaultServiceName = "unknown"

var (
	defaultRegistryManager = &RegistryManager{registerer: prometheus.DefaultRegisterer}
	globalServiceName      atomic.Value
)

func init() {
	globalServiceName.Store(defaultServiceName)
}

// RegistryManager 管理默认的 Registerer，测试中可替换
type RegistryManager struct {
	mu         sync.RWMutex
	registerer prometheus.Registerer
}

// SetRegisterer 设置全局 Registerer
func SetRegisterer(r prometheus.Registerer) {
	defaultRegistryManager.Set(r)
}

// GetRegisterer 返回当前的 Registerer
func GetRegisterer() prometheus.Registerer {
	return defaultRegistryManager.Get()
}

// Set 设置 Registerer，nil 恢复为默认
func (m *RegistryManager) Set(r prometheus.Registerer) {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerer = r
}

// Get 获取 Registerer
func (m *RegistryManager) Get() prometheus.Registerer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.registerer == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registerer
}

// SetServiceName 配置 service 标签
func SetServiceName(name string) {
	if name == "" {
		name = defaultServiceName
	}
	globalServiceName.Store(name)
}

// GetServiceName 返回当前服务名称
func GetServiceName() string {
	if value, ok := globalServiceName.Load().(string); ok && value != "" {
		return value
	}
	return defaultServiceName
}

func normalizeServiceName(name string) string {
	if name == "" {
		return GetServiceName()
	}
	return name
}
