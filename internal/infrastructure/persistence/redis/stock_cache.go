package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockSnapshot 缓存的库存快照（可用性查询所需的最小字段）
type StockSnapshot struct {
	SKU               string `json:"sku"`
	AvailableQuantity int    `json:"available_quantity"`
	PriceCents        int64  `json:"price_cents"`
}

// StockCache Redis库存读缓存
//
// 教学要点：
// 1. 只加速只读的可用性查询，MySQL始终是库存的唯一事实来源
//   - 读：先查Redis，未命中回源MySQL并写入缓存
//   - 写：任何库存变更后删除对应Key（失效而非更新）
//
// 2. 为什么失效而不是双写？
//   - 双写要保证与MySQL事务的原子性，复杂且容易出现脏数据
//   - 失效后下一次读自动回源，短暂的缓存未命中可以接受
//
// 3. Key设计规范
//   - stock:snapshot:{sku}：库存快照（JSON）
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStockCache 创建库存读缓存实例
func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StockCache{client: client, ttl: ttl}
}

// Get 读取缓存的库存快照
// 未命中返回(nil, nil)，由调用方回源MySQL
func (c *StockCache) Get(ctx context.Context, sku string) (*StockSnapshot, error) {
	val, err := c.client.Get(ctx, c.key(sku)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("读取库存缓存失败: %w", err)
	}

	var snapshot StockSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("解析库存缓存失败: %w", err)
	}

	return &snapshot, nil
}

// Set 回源后写入缓存（带TTL兜底，防止失效遗漏导致永久脏读）
func (c *StockCache) Set(ctx context.Context, snapshot *StockSnapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化库存快照失败: %w", err)
	}

	if err := c.client.Set(ctx, c.key(snapshot.SKU), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入库存缓存失败: %w", err)
	}
	return nil
}

// Invalidate 库存变更后删除缓存Key
func (c *StockCache) Invalidate(ctx context.Context, skus ...string) error {
	if len(skus) == 0 {
		return nil
	}

	keys := make([]string, len(skus))
	for i, sku := range skus {
		keys[i] = c.key(sku)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("删除库存缓存失败: %w", err)
	}
	return nil
}

func (c *StockCache) key(sku string) string {
	return fmt.Sprintf("stock:snapshot:%s", sku)
}
