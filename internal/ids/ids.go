// Package ids 提供订单和盈亏记录共用的单调递增编号。
// 只有一个调用方会修改它，所以不需要加锁；若将来引入并发访问，需要改为原子计数。
package ids

import "github.com/jxskiss/base62"

// Sequence 是一个从 1 开始单调递增的计数器
type Sequence struct {
	last int64
}

// Next 分配下一个编号
func (s *Sequence) Next() int64 {
	s.last++
	return s.last
}

// Last 返回最近一次分配的编号，尚未分配时为 0
func (s *Sequence) Last() int64 {
	return s.last
}

// OrderTag 把订单编号格式化为紧凑的可读标识, e.g. 62 -> "ORDER_10"
func OrderTag(id int64) string {
	return "ORDER_" + string(base62.FormatInt(id))
}

// PnLTag 把盈亏记录编号格式化为可读标识
func PnLTag(id int64) string {
	return "PNL_" + string(base62.FormatInt(id))
}
