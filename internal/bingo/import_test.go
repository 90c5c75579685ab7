package bingo

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseImportLineRoundTrip(t *testing.T) {
	for _, no := range []int{1, 42, 9999} {
		want := CardFor(no)
		line := fmt.Sprintf("%d:%s", no, want.Encode())
		gotNo, got, err := ParseImportLine(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if gotNo != no || got != want {
			t.Fatalf("round trip mismatch for cartela %d", no)
		}
	}
}

func TestParseImportLineAcceptsWhitespace(t *testing.T) {
	card := CardFor(7)
	cells := strings.Split(card.Encode(), ",")
	line := " 7 : " + strings.Join(cells, " , ")
	no, got, err := ParseImportLine(line)
	if err != nil {
		t.Fatalf("parse with spaces: %v", err)
	}
	if no != 7 || got != card {
		t.Fatalf("whitespace parse mismatch")
	}
}

func TestParseImportLineRejects(t *testing.T) {
	valid := CardFor(5).Encode()
	cells := strings.Split(valid, ",")

	// 中心格挪到别处
	shifted := make([]string, len(cells))
	copy(shifted, cells)
	shifted[0], shifted[12] = "free", "3"

	// 中心格不是 free
	noFree := make([]string, len(cells))
	copy(noFree, cells)
	noFree[12] = "33"

	// B 列越界
	outOfRange := make([]string, len(cells))
	copy(outOfRange, cells)
	outOfRange[0] = "16"

	// 非数字格
	notNumber := make([]string, len(cells))
	copy(notNumber, cells)
	notNumber[1] = "abc"

	cases := []struct {
		name string
		line string
	}{
		{"no separator", "5 " + valid},
		{"empty number", ":" + valid},
		{"zero number", "0:" + valid},
		{"negative number", "-3:" + valid},
		{"non-numeric number", "abc:" + valid},
		{"too few cells", "5:1,2,3"},
		{"too many cells", "5:" + valid + ",9"},
		{"free off center", "5:" + strings.Join(shifted, ",")},
		{"center not free", "5:" + strings.Join(noFree, ",")},
		{"value out of column range", "5:" + strings.Join(outOfRange, ",")},
		{"cell not a number", "5:" + strings.Join(notNumber, ",")},
	}
	for _, tc := range cases {
		if _, _, err := ParseImportLine(tc.line); err == nil {
			t.Errorf("%s: expected error for %q", tc.name, tc.line)
		}
	}
}
