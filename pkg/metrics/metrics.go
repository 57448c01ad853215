// Package metrics 提供基于Prometheus的业务指标收集
//
// 指标命名规范：
// 1. Counter以_total结尾（reservations_total）
// 2. Histogram以单位结尾（_seconds）
// 3. 标签只用低基数维度（result、status），不要用order_id/sku做标签
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// initialized 标记是否已初始化（防止重复注册）
	initialized bool

	// 预留相关指标

	// ReservationsTotal 预留操作总数（Counter）
	// 标签：op（reserve/confirm/release）、result（ok/insufficient_stock/not_found/error）
	ReservationsTotal *prometheus.CounterVec

	// ReservationDuration 预留操作耗时（Histogram）
	ReservationDuration *prometheus.HistogramVec

	// ReservationsExpiredTotal 后台回收的超时预留总数（Counter）
	ReservationsExpiredTotal prometheus.Counter

	// 支付相关指标

	// PaymentsTotal 支付流水写入总数（Counter）
	// 标签：kind（payment/refund）、status（COMPLETED/FAILED/REFUNDED）
	PaymentsTotal *prometheus.CounterVec

	// PaymentGatewayDuration 网关调用耗时（Histogram）
	PaymentGatewayDuration prometheus.Histogram

	// 熔断器指标

	// GatewayBreakerState 网关熔断器状态（Gauge）
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	GatewayBreakerState prometheus.Gauge
)

// Init 初始化指标（幂等，重复调用只注册一次）
func Init() {
	if initialized {
		return
	}
	initialized = true

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercore_reservations_total",
		Help: "预留操作总数，按操作与结果分类",
	}, []string{"op", "result"})

	ReservationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordercore_reservation_duration_seconds",
		Help:    "预留操作耗时",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	ReservationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordercore_reservations_expired_total",
		Help: "后台任务回收的超时预留总数",
	})

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercore_payments_total",
		Help: "支付流水写入总数，按类型与状态分类",
	}, []string{"kind", "status"})

	PaymentGatewayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ordercore_payment_gateway_duration_seconds",
		Help:    "支付网关调用耗时",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	GatewayBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ordercore_gateway_breaker_state",
		Help: "网关熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
	})
}

// ObserveReservation 记录一次预留操作
// 空实现保护：未Init时（纯单元测试场景）直接跳过
func ObserveReservation(op, result string, seconds float64) {
	if !initialized {
		return
	}
	ReservationsTotal.WithLabelValues(op, result).Inc()
	ReservationDuration.WithLabelValues(op).Observe(seconds)
}

// ObservePayment 记录一次支付流水写入
func ObservePayment(kind, status string) {
	if !initialized {
		return
	}
	PaymentsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveExpired 记录一次后台回收
func ObserveExpired(count int) {
	if !initialized || count <= 0 {
		return
	}
	ReservationsExpiredTotal.Add(float64(count))
}

// SetBreakerState 记录熔断器状态
func SetBreakerState(state float64) {
	if !initialized {
		return
	}
	GatewayBreakerState.Set(state)
}
