// File: internal/pkg/metrics/dm_metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DMMetrics 回合协议指标
type DMMetrics struct {
	TurnsTotal         *prometheus.CounterVec   // 回合总数（按结果）
	TurnDuration       prometheus.Histogram     // 回合耗时
	CompletionDuration *prometheus.HistogramVec // 模型调用耗时（按 provider）
	UpdateBlocksTotal  *prometheus.CounterVec   // 更新块解析结果（none/parsed/malformed）
	ParseWarnings      *prometheus.CounterVec   // 解析警告（按种类）
	ActionsTotal       *prometheus.CounterVec   // 动作执行结果（按类型与状态）
	WriteConflicts     *prometheus.CounterVec   // 乐观并发冲突（按写入种类）
}

// DefaultDMMetrics 默认实例
var DefaultDMMetrics *DMMetrics

// CompletionBuckets 模型调用的耗时分布
var CompletionBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90}

func init() {
	DefaultDMMetrics = NewDMMetricsWithRegistry(Namespace, GetRegisterer())
}

// NewDMMetricsWithRegistry 使用指定注册表创建
func NewDMMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *DMMetrics {
	factory := promauto.With(registerer)

	return &DMMetrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of DM turns by result (ok/replayed/invalid_input/not_found/completion_failed/error)",
			},
			[]string{"result"},
		),
		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "End-to-end DM turn latency",
				Buckets:   CompletionBuckets,
			},
		),
		CompletionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Language model completion latency by provider",
				Buckets:   CompletionBuckets,
			},
			[]string{"provider"},
		),
		UpdateBlocksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_blocks_total",
				Help:      "Update block outcomes by status (none/parsed/malformed)",
			},
			[]string{"status"},
		),
		ParseWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_warnings_total",
				Help:      "Update block warnings by kind",
			},
			[]string{"kind"},
		),
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "State mutation actions by type and status (applied/skipped/failed)",
			},
			[]string{"type", "status"},
		),
		WriteConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_conflicts_total",
				Help:      "Optimistic concurrency conflicts by write kind (inventory/spell_slots/campaign_log)",
			},
			[]string{"kind"},
		),
	}
}

// RecordTurn 记录回合结果与耗时
func (m *DMMetrics) RecordTurn(result string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(result).Inc()
	m.TurnDuration.Observe(duration.Seconds())
}

// RecordCompletion 记录模型调用耗时
func (m *DMMetrics) RecordCompletion(provider string, duration time.Duration) {
	m.CompletionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordUpdateBlock 记录更新块状态
func (m *DMMetrics) RecordUpdateBlock(status string) {
	m.UpdateBlocksTotal.WithLabelValues(status).Inc()
}

// RecordParseWarning 记录解析警告
func (m *DMMetrics) RecordParseWarning(kind string) {
	m.ParseWarnings.WithLabelValues(kind).Inc()
}

// RecordAction 记录单个动作的结果
func (m *DMMetrics) RecordAction(actionType, status string) {
	m.ActionsTotal.WithLabelValues(actionType, status).Inc()
}

// RecordWriteConflict 记录一次版本冲突
func (m *DMMetrics) RecordWriteConflict(kind string) {
	m.WriteConflicts.WithLabelValues(kind).Inc()
}
