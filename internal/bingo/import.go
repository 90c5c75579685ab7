package bingo

import (
	"fmt"
	"strconv"
	"strings"
)

const freeToken = "free"

// ParseImportLine 解析批量导入的一行：`cartelaNumber: v1,v2,...,v25`
// 行优先 25 个值，第 13 个（(2,2)）必须是字面量 free，其余值必须落在所属列的
// B-I-N-G-O 区间内。任何违规导致该行整体拒绝。
func ParseImportLine(line string) (int, Card, error) {
	var card Card

	idx := strings.Index(line, ":")
	if idx < 0 {
		return 0, card, fmt.Errorf("missing ':' separator")
	}

	no, err := strconv.Atoi(strings.TrimSpace(line[:idx]))
	if err != nil || no <= 0 {
		return 0, card, fmt.Errorf("invalid cartela number %q", strings.TrimSpace(line[:idx]))
	}

	card, err = parseCells(strings.Split(line[idx+1:], ","))
	if err != nil {
		return 0, card, err
	}
	return no, card, nil
}

func parseCells(cells []string) (Card, error) {
	var card Card
	if len(cells) != 25 {
		return card, fmt.Errorf("expected 25 cells, got %d", len(cells))
	}

	for i, raw := range cells {
		row, col := i/5, i%5
		tok := strings.TrimSpace(raw)

		if row == 2 && col == 2 {
			if !strings.EqualFold(tok, freeToken) {
				return card, fmt.Errorf("center cell must be the literal %q, got %q", freeToken, tok)
			}
			card[row][col] = FreeCell
			continue
		}
		if strings.EqualFold(tok, freeToken) {
			return card, fmt.Errorf("free cell only allowed at center, found at (%d,%d)", row, col)
		}

		v, err := strconv.Atoi(tok)
		if err != nil {
			return card, fmt.Errorf("cell (%d,%d): invalid number %q", row, col, tok)
		}
		lo, hi := ColumnRange(col)
		if v < lo || v > hi {
			return card, fmt.Errorf("cell (%d,%d) value %d out of column range %d-%d", row, col, v, lo, hi)
		}
		card[row][col] = v
	}
	return card, nil
}
