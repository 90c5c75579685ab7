package bingo

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
)

// Card 5x5 宾果卡片，行优先。中心格 (2,2) 固定为 FreeCell。
// 列取值范围遵循 B-I-N-G-O：第 c 列取值于 [1+15c, 15+15c]。
type Card [5][5]int

// FreeCell 中心免费格的占位值
const FreeCell = 0

// CardGenVersion 确定性卡片生成算法版本。
// v1：以 cartela 编号派生种子，逐列洗牌该列的 15 个候选值并取前 5 个。
// 同一编号在任何实现上必须生成完全相同的卡片；修改算法必须升版本号。
const CardGenVersion = 1

// v1 种子盐，不可变更
const cardSeedSaltV1 = 0x9e3779b97f4a7c15

// ColumnRange 返回第 col 列的取值区间 [lo, hi]
func ColumnRange(col int) (lo, hi int) {
	lo = col*15 + 1
	return lo, lo + 14
}

// CardFor 按 cartela 编号确定性生成卡片（算法 v1，纯函数）
func CardFor(cartelaNo int) Card {
	rng := rand.New(rand.NewSource(uint64(cartelaNo)*cardSeedSaltV1 + CardGenVersion))

	var card Card
	for col := 0; col < 5; col++ {
		lo, _ := ColumnRange(col)
		perm := rng.Perm(15)
		for row := 0; row < 5; row++ {
			card[row][col] = lo + perm[row]
		}
	}
	card[2][2] = FreeCell
	return card
}

// Validate 校验卡片结构：列范围与唯一免费格
func (c Card) Validate() error {
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			v := c[row][col]
			if row == 2 && col == 2 {
				if v != FreeCell {
					return fmt.Errorf("center cell must be free, got %d", v)
				}
				continue
			}
			lo, hi := ColumnRange(col)
			if v < lo || v > hi {
				return fmt.Errorf("cell (%d,%d) value %d out of column range %d-%d", row, col, v, lo, hi)
			}
		}
	}
	return nil
}

// Encode 行优先序列化卡片，中心格输出字面量 free（与批量导入格式一致）
func (c Card) Encode() string {
	parts := make([]string, 0, 25)
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			if row == 2 && col == 2 {
				parts = append(parts, freeToken)
				continue
			}
			parts = append(parts, strconv.Itoa(c[row][col]))
		}
	}
	return strings.Join(parts, ",")
}

// DecodeCard 解析 Encode 产出的序列化卡片
func DecodeCard(s string) (Card, error) {
	return parseCells(strings.Split(s, ","))
}
