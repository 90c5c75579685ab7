package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"bingo-server/common/constant"
	"bingo-server/internal/bingo"
	"bingo-server/internal/model"
	"bingo-server/internal/notify"
	"bingo-server/internal/store"
	"bingo-server/internal/store/memory"
)

// seedCartelas 向内存仓库注入编号确定性卡片，返回编号到主键的映射
func seedCartelas(t *testing.T, st store.Store, shopID int64, nos ...int) map[int]int64 {
	t.Helper()
	ids := make(map[int]int64, len(nos))
	for _, no := range nos {
		c := &model.Cartela{ShopID: shopID, CartelaNo: no, Card: bingo.CardFor(no).Encode()}
		if err := st.InsertCartela(context.Background(), c); err != nil {
			t.Fatalf("insert cartela %d: %v", no, err)
		}
		ids[no] = c.ID
	}
	return ids
}

func TestBookUnbookLifecycle(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBookingService(st, notify.Noop{})
	ids := seedCartelas(t, st, 1, 7)

	c, err := svc.Book(ctx, BookInput{CartelaID: ids[7], ActorID: 100})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if c.Status != constant.CartelaBooked || c.BookedBy != 100 {
		t.Fatalf("unexpected cartela state after book: status=%d booked_by=%d", c.Status, c.BookedBy)
	}

	// 已被预订的卡片不能再次预订
	if _, err := svc.Book(ctx, BookInput{CartelaID: ids[7], ActorID: 200}); !errors.Is(err, store.ErrCartelaBooked) {
		t.Fatalf("second book: want ErrCartelaBooked, got %v", err)
	}

	// 非预订人不能释放
	if err := svc.Unbook(ctx, UnbookInput{CartelaID: ids[7], ActorID: 200}); !errors.Is(err, store.ErrNotBooker) {
		t.Fatalf("unbook by stranger: want ErrNotBooker, got %v", err)
	}

	if err := svc.Unbook(ctx, UnbookInput{CartelaID: ids[7], ActorID: 100}); err != nil {
		t.Fatalf("unbook by booker: %v", err)
	}

	// 释放后空闲卡片再释放是冲突
	if err := svc.Unbook(ctx, UnbookInput{CartelaID: ids[7], ActorID: 100}); !errors.Is(err, store.ErrCartelaNotBooked) {
		t.Fatalf("unbook free cartela: want ErrCartelaNotBooked, got %v", err)
	}
}

func TestForceUnbook(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBookingService(st, notify.Noop{})
	ids := seedCartelas(t, st, 1, 3)

	if _, err := svc.Book(ctx, BookInput{CartelaID: ids[3], ActorID: 100}); err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := svc.Unbook(ctx, UnbookInput{CartelaID: ids[3], ActorID: 999, Force: true}); err != nil {
		t.Fatalf("force unbook: %v", err)
	}
	c, err := st.GetCartela(ctx, ids[3])
	if err != nil {
		t.Fatalf("get cartela: %v", err)
	}
	if c.Status != constant.CartelaFree || c.BookedBy != 0 {
		t.Fatalf("cartela not freed: status=%d booked_by=%d", c.Status, c.BookedBy)
	}
}

func TestConcurrentBookSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBookingService(st, notify.Noop{})
	ids := seedCartelas(t, st, 1, 11)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, BookInput{CartelaID: ids[11], ActorID: int64(i + 1)})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrCartelaBooked):
		default:
			t.Fatalf("unexpected book error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("want exactly 1 winning book, got %d", ok)
	}
}

func TestResetShopReleasesAll(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBookingService(st, notify.Noop{})
	ids := seedCartelas(t, st, 1, 1, 2, 3)
	seedCartelas(t, st, 2, 1) // 隔壁店铺不受影响

	for no, id := range ids {
		if _, err := svc.Book(ctx, BookInput{CartelaID: id, ActorID: int64(no)}); err != nil {
			t.Fatalf("book %d: %v", no, err)
		}
	}
	released, err := svc.ResetShop(ctx, 1, 999, "")
	if err != nil {
		t.Fatalf("reset shop: %v", err)
	}
	if released != 3 {
		t.Fatalf("want 3 released, got %d", released)
	}
	avail, err := svc.ListAvailable(ctx, 1)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(avail) != 3 {
		t.Fatalf("want 3 available after reset, got %d", len(avail))
	}
}

func TestImportSkipsBadLines(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBookingService(st, notify.Noop{})

	good1 := fmt.Sprintf("101:%s", bingo.CardFor(101).Encode())
	good2 := fmt.Sprintf("102:%s", bingo.CardFor(102).Encode())
	lines := []string{
		good1,
		"no colon here",
		"103:1,2,3", // 格数不足
		good2,
		good1, // 重复编号
	}
	out, err := svc.Import(ctx, ImportInput{ShopID: 1, Content: strings.Join(lines, "\n")})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if out.Imported != 2 {
		t.Fatalf("want 2 imported, got %d", out.Imported)
	}
	if len(out.Rejected) != 3 {
		t.Fatalf("want 3 rejected, got %d: %+v", len(out.Rejected), out.Rejected)
	}
	for _, r := range out.Rejected {
		if r.LineNo < 1 || r.Reason == "" {
			t.Fatalf("rejected line missing detail: %+v", r)
		}
	}

	if _, err := st.GetCartelaByNo(ctx, 1, 101); err != nil {
		t.Fatalf("imported cartela 101 not found: %v", err)
	}
	if _, err := st.GetCartelaByNo(ctx, 1, 103); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("bad line must not be imported, got %v", err)
	}
}
