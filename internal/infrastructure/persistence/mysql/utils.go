package mysql

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateError 判断是否为唯一索引冲突
//
// payments表的external_transaction_id带唯一索引：
// 流水号生成碰撞（或重复提交同一结论）时MySQL返回1062
// （Duplicate entry 'PAY...' for key 'external_transaction_id'），
// 账本层据此拒绝追加第二行而不是覆盖
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 部分驱动路径不翻译成gorm.ErrDuplicatedKey，兜底匹配错误信息
	return strings.Contains(err.Error(), "Duplicate entry")
}
