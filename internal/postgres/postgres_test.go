package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/vbp1/pgdbcopy/internal/pgtool"
)

func TestStreamRows_HandlerCalled(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("mock init: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"pid"}).AddRow(int32(1)).AddRow(int32(2)).AddRow(int32(3))
	mock.ExpectQuery("SELECT pid FROM pg_stat_activity").WithArgs("shop").WillReturnRows(rows)

	var count int
	h := func(_ []any) error { count++; return nil }

	if err := StreamRows(ctx, mock, "SELECT pid FROM pg_stat_activity WHERE datname = $1", []any{"shop"}, 1, h); err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStreamRows_HandlerErrorStops(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("mock init: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"pid"}).AddRow(int32(1)).AddRow(int32(2))
	mock.ExpectQuery("SELECT pid").WillReturnRows(rows)

	stop := errors.New("stop")
	var count int
	err = StreamRows(ctx, mock, "SELECT pid", nil, 0, func(_ []any) error { count++; return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("want stop error, got %v", err)
	}
	if count != 1 {
		t.Fatalf("handler should run once, ran %d", count)
	}
}

func TestPrettyBytes(t *testing.T) {
	cases := map[int64]string{
		512:         "512 bytes",
		2048:        "2.00 kB",
		5 << 20:     "5.00 MB",
		3 << 30 / 2: "1.50 GB",
	}
	for in, want := range cases {
		if got := PrettyBytes(in); got != want {
			t.Errorf("PrettyBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestStreamRows_ColumnMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT pid, datname").
		WillReturnRows(pgxmock.NewRows([]string{"pid", "datname"}).AddRow(int32(1), "shop"))

	called := false
	err = StreamRows(context.Background(), mock, "SELECT pid, datname", nil, 1, func(_ []any) error { called = true; return nil })
	if err == nil {
		t.Fatal("expected column mismatch error")
	}
	if called {
		t.Fatal("handler must not see mismatched rows")
	}
}

func TestConnectRejectsPortOutOfRange(t *testing.T) {
	_, err := Connect(context.Background(), pgtool.ConnParams{Host: "127.0.0.1", Port: 70000}, "postgres", 1)
	if err == nil || !strings.Contains(err.Error(), "port out of range: 70000") {
		t.Fatalf("expected range error, got %v", err)
	}
}
