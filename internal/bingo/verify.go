package bingo

// Coord 卡片上的一个格子坐标
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Pattern 一种获胜图案：名称 + 必须全部覆盖的格子集合。
// 新图案直接追加到 Patterns 列表即可，校验逻辑不感知具体图案。
type Pattern struct {
	Name  string
	Cells []Coord
}

// Patterns 按固定优先级排列的图案清单（多图案同时成立时取第一个）：
// 五行、五列、主对角线、副对角线、四角。
var Patterns = buildPatterns()

func buildPatterns() []Pattern {
	var ps []Pattern
	rowNames := [5]string{"row_0", "row_1", "row_2", "row_3", "row_4"}
	colNames := [5]string{"col_b", "col_i", "col_n", "col_g", "col_o"}
	for r := 0; r < 5; r++ {
		cells := make([]Coord, 0, 5)
		for c := 0; c < 5; c++ {
			cells = append(cells, Coord{Row: r, Col: c})
		}
		ps = append(ps, Pattern{Name: rowNames[r], Cells: cells})
	}
	for c := 0; c < 5; c++ {
		cells := make([]Coord, 0, 5)
		for r := 0; r < 5; r++ {
			cells = append(cells, Coord{Row: r, Col: c})
		}
		ps = append(ps, Pattern{Name: colNames[c], Cells: cells})
	}
	diagMain := []Coord{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}}
	diagAnti := []Coord{{0, 4}, {1, 3}, {2, 2}, {3, 1}, {4, 0}}
	corners := []Coord{{0, 0}, {0, 4}, {4, 0}, {4, 4}}
	ps = append(ps,
		Pattern{Name: "diagonal_main", Cells: diagMain},
		Pattern{Name: "diagonal_anti", Cells: diagAnti},
		Pattern{Name: "four_corners", Cells: corners},
	)
	return ps
}

// MatchResult 校验结果；未命中时 Matched=false
type MatchResult struct {
	Matched bool    `json:"matched"`
	Pattern string  `json:"pattern,omitempty"`
	Cells   []Coord `json:"cells,omitempty"`
}

// Verify 纯函数：卡片 + 已叫号集合 → 是否命中图案。
// 中心免费格恒视为已标记。按 Patterns 顺序返回第一个全覆盖图案。
func Verify(card Card, called []int) MatchResult {
	calledSet := make(map[int]struct{}, len(called))
	for _, n := range called {
		calledSet[n] = struct{}{}
	}

	marked := func(c Coord) bool {
		if c.Row == 2 && c.Col == 2 {
			return true
		}
		_, ok := calledSet[card[c.Row][c.Col]]
		return ok
	}

	for _, p := range Patterns {
		all := true
		for _, cell := range p.Cells {
			if !marked(cell) {
				all = false
				break
			}
		}
		if all {
			// 复制命中格，防止调用方改写全局图案表
			cells := make([]Coord, len(p.Cells))
			copy(cells, p.Cells)
			return MatchResult{Matched: true, Pattern: p.Name, Cells: cells}
		}
	}
	return MatchResult{}
}
