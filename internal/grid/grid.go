// Package grid 负责根据当前价格计算网格价位阶梯。
//
// 网格档位的身份是整数索引 round(price / spacing)，而不是浮点价格本身，
// 这样在每个周期重新计算网格时成员判断是稳定的。
// 取整采用四舍五入（0.5 远离零方向），与 decimal.Round 的语义一致。
package grid

import (
	"fmt"
	"grid-trader-go/internal/models"
	"math"

	"github.com/shopspring/decimal"
)

// ComputeLevels 以最接近当前价格的 spacing 整数倍为基准，
// 返回 2*count+1 个严格递增、间距均为 spacing 的网格档位。
func ComputeLevels(currentPrice, spacing float64, count int) ([]models.GridLevel, error) {
	if spacing <= 0 || math.IsNaN(spacing) || math.IsInf(spacing, 0) {
		return nil, fmt.Errorf("%w: grid spacing must be positive, got %v", models.ErrInvalidParameter, spacing)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: grid count must be non-negative, got %d", models.ErrInvalidParameter, count)
	}
	if math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return nil, fmt.Errorf("%w: current price must be finite, got %v", models.ErrInvalidParameter, currentPrice)
	}

	step := decimal.NewFromFloat(spacing)
	base := IndexOf(currentPrice, spacing)

	levels := make([]models.GridLevel, 0, 2*count+1)
	for i := -count; i <= count; i++ {
		idx := base + int64(i)
		levels = append(levels, models.GridLevel{
			Index: idx,
			Price: decimal.NewFromInt(idx).Mul(step).InexactFloat64(),
		})
	}
	return levels, nil
}

// IndexOf 返回价格对应的网格索引 round(price / spacing)
func IndexOf(price, spacing float64) int64 {
	return decimal.NewFromFloat(price).
		Div(decimal.NewFromFloat(spacing)).
		Round(0).
		IntPart()
}

// LevelAt 返回某个价格所在的规范化网格档位
func LevelAt(price, spacing float64) models.GridLevel {
	idx := IndexOf(price, spacing)
	return models.GridLevel{
		Index: idx,
		Price: decimal.NewFromInt(idx).Mul(decimal.NewFromFloat(spacing)).InexactFloat64(),
	}
}

// Bracket 在有序阶梯中找到满足 lower < price <= upper 的相邻档位对。
// 价格落在阶梯之外时 ok 为 false。
func Bracket(levels []models.GridLevel, price float64) (lower, upper models.GridLevel, ok bool) {
	for i := 0; i+1 < len(levels); i++ {
		if price > levels[i].Price && price <= levels[i+1].Price {
			return levels[i], levels[i+1], true
		}
	}
	return models.GridLevel{}, models.GridLevel{}, false
}
