package bingo

import (
	"testing"
)

func TestCardForDeterministic(t *testing.T) {
	for _, no := range []int{1, 7, 42, 75, 999, 100000} {
		a := CardFor(no)
		b := CardFor(no)
		if a != b {
			t.Fatalf("cartela %d: two generations differ:\n%v\n%v", no, a, b)
		}
	}
}

func TestCardForDistinct(t *testing.T) {
	a := CardFor(1)
	b := CardFor(2)
	if a == b {
		t.Fatalf("different cartela numbers produced identical cards")
	}
}

func TestCardForValid(t *testing.T) {
	for no := 1; no <= 200; no++ {
		card := CardFor(no)
		if err := card.Validate(); err != nil {
			t.Fatalf("cartela %d: invalid generated card: %v", no, err)
		}
		if card[2][2] != FreeCell {
			t.Fatalf("cartela %d: center cell not free: %d", no, card[2][2])
		}
		// 列内无重复
		for col := 0; col < 5; col++ {
			seen := map[int]bool{}
			for row := 0; row < 5; row++ {
				if row == 2 && col == 2 {
					continue
				}
				v := card[row][col]
				if seen[v] {
					t.Fatalf("cartela %d: duplicate value %d in column %d", no, v, col)
				}
				seen[v] = true
			}
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	card := CardFor(17)
	decoded, err := DecodeCard(card.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != card {
		t.Fatalf("round trip mismatch:\n%v\n%v", card, decoded)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	card := CardFor(3)
	card[0][0] = 16 // B 列上界为 15
	if err := card.Validate(); err == nil {
		t.Fatalf("expected out-of-range error for B column value 16")
	}
	card = CardFor(3)
	card[2][2] = 40
	if err := card.Validate(); err == nil {
		t.Fatalf("expected error for non-free center cell")
	}
}

func TestColumnRange(t *testing.T) {
	cases := [][3]int{{0, 1, 15}, {1, 16, 30}, {2, 31, 45}, {3, 46, 60}, {4, 61, 75}}
	for _, c := range cases {
		lo, hi := ColumnRange(c[0])
		if lo != c[1] || hi != c[2] {
			t.Fatalf("column %d: got [%d,%d], want [%d,%d]", c[0], lo, hi, c[1], c[2])
		}
	}
}
