package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTransactionNo 生成外部交易流水号
//
// 教学要点：
// 格式：前缀 + YYYYMMDDHHMMSS + UUID前12位
// 示例：PAY20251106123456a1b2c3d4e5f6
// 时间前缀便于人工排查，UUID后缀保证全局唯一
func GenerateTransactionNo(prefix string) string {
	timePart := time.Now().Format("20060102150405")
	randomPart := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s%s%s", prefix, timePart, randomPart)
}

// 流水号前缀
const (
	TransactionNoPrefixPay    = "PAY"
	TransactionNoPrefixRefund = "REF"
)
