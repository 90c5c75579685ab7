package bingo

import "testing"

// 手工构造一张卡片，便于按格子指定叫号
func testCard() Card {
	var card Card
	for col := 0; col < 5; col++ {
		lo, _ := ColumnRange(col)
		for row := 0; row < 5; row++ {
			card[row][col] = lo + row
		}
	}
	card[2][2] = FreeCell
	return card
}

func cellValues(card Card, cells []Coord) []int {
	vals := make([]int, 0, len(cells))
	for _, c := range cells {
		if c.Row == 2 && c.Col == 2 {
			continue
		}
		vals = append(vals, card[c.Row][c.Col])
	}
	return vals
}

func TestVerifyRow(t *testing.T) {
	card := testCard()
	called := []int{card[0][0], card[0][1], card[0][2], card[0][3], card[0][4]}
	res := Verify(card, called)
	if !res.Matched || res.Pattern != "row_0" {
		t.Fatalf("expected row_0 match, got %+v", res)
	}
	if len(res.Cells) != 5 {
		t.Fatalf("expected 5 pattern cells, got %d", len(res.Cells))
	}
}

func TestVerifyColumn(t *testing.T) {
	card := testCard()
	called := []int{card[0][1], card[1][1], card[2][1], card[3][1], card[4][1]}
	res := Verify(card, called)
	if !res.Matched || res.Pattern != "col_i" {
		t.Fatalf("expected col_i match, got %+v", res)
	}
}

func TestVerifyCenterRowUsesFreeCell(t *testing.T) {
	// 第 2 行只需叫 4 个号，中心格免费
	card := testCard()
	called := []int{card[2][0], card[2][1], card[2][3], card[2][4]}
	res := Verify(card, called)
	if !res.Matched || res.Pattern != "row_2" {
		t.Fatalf("expected row_2 via free center, got %+v", res)
	}
}

func TestVerifyDiagonals(t *testing.T) {
	card := testCard()
	for _, name := range []string{"diagonal_main", "diagonal_anti"} {
		var pat Pattern
		for _, p := range Patterns {
			if p.Name == name {
				pat = p
			}
		}
		res := Verify(card, cellValues(card, pat.Cells))
		if !res.Matched || res.Pattern != name {
			t.Fatalf("expected %s match, got %+v", name, res)
		}
	}
}

func TestVerifyFourCorners(t *testing.T) {
	card := testCard()
	called := []int{card[0][0], card[0][4], card[4][0], card[4][4]}
	res := Verify(card, called)
	if !res.Matched || res.Pattern != "four_corners" {
		t.Fatalf("expected four_corners match, got %+v", res)
	}
}

func TestVerifyNoMatch(t *testing.T) {
	card := testCard()
	called := []int{card[0][0], card[0][1], card[0][2], card[0][3]} // row 0 缺一格
	res := Verify(card, called)
	if res.Matched {
		t.Fatalf("expected no match, got %+v", res)
	}
	if res.Pattern != "" || res.Cells != nil {
		t.Fatalf("no-match result should be empty, got %+v", res)
	}
}

func TestVerifyPriorityRowBeforeCorners(t *testing.T) {
	// 同时命中 row_0 与 four_corners 时返回先定义的 row_0
	card := testCard()
	called := append(
		[]int{card[0][0], card[0][1], card[0][2], card[0][3], card[0][4]},
		card[4][0], card[4][4],
	)
	res := Verify(card, called)
	if res.Pattern != "row_0" {
		t.Fatalf("expected row_0 to win priority, got %+v", res)
	}
}

func TestVerifyResultCellsDetached(t *testing.T) {
	// 改写返回的命中格不得污染全局图案表
	card := testCard()
	called := []int{card[0][0], card[0][1], card[0][2], card[0][3], card[0][4]}

	first := Verify(card, called)
	if !first.Matched {
		t.Fatalf("expected row_0 match, got %+v", first)
	}
	for i := range first.Cells {
		first.Cells[i] = Coord{Row: 4, Col: 4}
	}

	again := Verify(card, called)
	if !again.Matched || again.Pattern != "row_0" {
		t.Fatalf("expected row_0 match after caller mutation, got %+v", again)
	}
	for i, c := range again.Cells {
		if c.Row != 0 || c.Col != i {
			t.Fatalf("pattern cells corrupted at %d: %+v", i, c)
		}
	}
}

func TestVerifyIgnoresUnrelatedNumbers(t *testing.T) {
	card := testCard()
	called := []int{card[0][0], 15, 30, 45, 60, 75}
	res := Verify(card, called)
	if res.Matched {
		t.Fatalf("expected no match with scattered numbers, got %+v", res)
	}
}
