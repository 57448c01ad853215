package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway 模拟支付网关
//
// 教学要点：
// 1. 按配置的成功率随机给出成败结论（真实网关的占位实现）
// 2. Sleep模拟网关耗时，同时尊重ctx取消
// 3. rand.Rand不是并发安全的，用互斥锁保护
type MockGateway struct {
	mu                sync.Mutex
	rnd               *rand.Rand
	paySuccessRate    int
	refundSuccessRate int
	latency           time.Duration
}

// NewMockGateway 创建模拟网关
// 成功率取值0-100，latency为每次调用的模拟耗时
func NewMockGateway(paySuccessRate, refundSuccessRate int, latency time.Duration) *MockGateway {
	return &MockGateway{
		rnd:               rand.New(rand.NewSource(time.Now().UnixNano())),
		paySuccessRate:    paySuccessRate,
		refundSuccessRate: refundSuccessRate,
		latency:           latency,
	}
}

func (g *MockGateway) Charge(ctx context.Context, orderID string, amountCents int64, currency, method string) (Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return Result{}, err
	}

	return Result{
		Succeeded: g.roll(g.paySuccessRate),
		Reference: "MOCK" + uuid.NewString()[:8],
	}, nil
}

func (g *MockGateway) Refund(ctx context.Context, externalTransactionID string, amountCents int64, currency string) (Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return Result{}, err
	}

	return Result{
		Succeeded: g.roll(g.refundSuccessRate),
		Reference: "MOCKREF" + uuid.NewString()[:8],
	}, nil
}

func (g *MockGateway) roll(successRate int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(100) < successRate
}

func (g *MockGateway) simulateLatency(ctx context.Context) error {
	if g.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(g.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
