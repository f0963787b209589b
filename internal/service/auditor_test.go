package service

import (
	"context"
	"testing"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name         string
		forwardedFor string
		remoteAddr   string
		want         string
	}{
		{"только адрес соединения", "", "192.168.1.5:54321", "192.168.1.5"},
		{"IPv6 с портом", "", "[::1]:8080", "::1"},
		{"адрес без порта", "", "10.0.0.1", "10.0.0.1"},
		{"один X-Forwarded-For", "1.2.3.4", "10.0.0.1:80", "1.2.3.4"},
		{"цепочка прокси", " 1.2.3.4 , 5.6.7.8, 10.0.0.2", "10.0.0.1:80", "1.2.3.4"},
		{"пустой первый элемент", " , 5.6.7.8", "10.0.0.1:80", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.forwardedFor, tt.remoteAddr); got != tt.want {
				t.Errorf("ClientIP(%q, %q) = %q, ожидается %q", tt.forwardedFor, tt.remoteAddr, got, tt.want)
			}
		})
	}
}

// TestAuditor_SameDayDownloads — два скачивания с разных адресов за день:
// одна запись count=2 и два события в Recent.
func TestAuditor_SameDayDownloads(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	_, version := e.projectWithVersion(t, "Demo", "1.0.0")
	a, err := e.artifacts.Upload(ctx, admin, version.ID, "app.apk", newPayload(1))
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	for _, addr := range []string{"1.2.3.4", "5.6.7.8"} {
		d, err := e.artifacts.Download(ctx, admin, a.ID, addr)
		if err != nil {
			t.Fatalf("Download() ошибка: %v", err)
		}
		d.Content.Close()
	}

	days, err := e.auditor.DailyCounts(ctx, 30)
	if err != nil {
		t.Fatalf("DailyCounts() ошибка: %v", err)
	}
	today := time.Now().Format(time.DateOnly)
	if len(days) != 1 || days[0].Day != today || days[0].Count != 2 {
		t.Errorf("DailyCounts() = %+v, ожидается [{%s 2}]", days, today)
	}

	recent, err := e.auditor.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() ошибка: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() вернул %d событий, ожидается 2", len(recent))
	}
	if recent[0].IPAddress != "5.6.7.8" || recent[1].IPAddress != "1.2.3.4" {
		t.Errorf("Recent() должен идти от новых к старым: %+v", recent)
	}
	if recent[0].Filename != a.Filename {
		t.Errorf("Filename = %q, ожидается %q", recent[0].Filename, a.Filename)
	}
}

// TestAuditor_DailyCountsLocalDays — группировка по локальным дням,
// пустые дни пропускаются, события вне окна не учитываются.
func TestAuditor_DailyCountsLocalDays(t *testing.T) {
	db := newMemDB()
	db.artifacts[1] = &model.Artifact{ID: 1, Filename: "app.apk"}

	// UTC+3: 22:30 UTC уже следующий локальный день
	loc := time.FixedZone("MSK", 3*60*60)
	events := []time.Time{
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),  // 2026-03-01 13:00 local
		time.Date(2026, 3, 1, 20, 59, 0, 0, time.UTC), // 2026-03-01 23:59 local
		time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC),  // 2026-03-02 00:00 local
		time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC), // 2026-03-02 01:30 local
		time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),   // 2026-03-04 12:00 local
		time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),   // вне окна
	}
	for _, ts := range events {
		db.now = func() time.Time { return ts }
		if err := db.downloadRepo().Record(context.Background(), 1, "1.2.3.4"); err != nil {
			t.Fatalf("Record() ошибка: %v", err)
		}
	}

	a := NewDownloadAuditor(db.downloadRepo(), testLogger())
	a.loc = loc
	a.now = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, loc) }

	got, err := a.DailyCounts(context.Background(), 30)
	if err != nil {
		t.Fatalf("DailyCounts() ошибка: %v", err)
	}
	want := []model.DailyCount{
		{Day: "2026-03-01", Count: 2},
		{Day: "2026-03-02", Count: 2},
		{Day: "2026-03-04", Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("DailyCounts() = %+v, ожидается %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("день %d = %+v, ожидается %+v", i, got[i], want[i])
		}
	}
}

func TestAuditor_RecentLimit(t *testing.T) {
	db := newMemDB()
	db.artifacts[1] = &model.Artifact{ID: 1, Filename: "app.apk"}
	for range 5 {
		_ = db.downloadRepo().Record(context.Background(), 1, "1.2.3.4")
	}
	a := NewDownloadAuditor(db.downloadRepo(), testLogger())

	tests := []struct {
		limit int
		want  int
	}{
		{3, 3},
		{0, 1},
		{-5, 1},
		{1000, 5},
	}
	for _, tt := range tests {
		got, err := a.Recent(context.Background(), tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d) ошибка: %v", tt.limit, err)
		}
		if len(got) != tt.want {
			t.Errorf("Recent(%d) вернул %d, ожидается %d", tt.limit, len(got), tt.want)
		}
	}
}

// TestAuditor_RecordSwallowsErrors — ошибка записи только логируется.
func TestAuditor_RecordSwallowsErrors(t *testing.T) {
	db := newMemDB()
	a := NewDownloadAuditor(db.downloadRepo(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Файла 42 нет — репозиторий вернёт ошибку внешнего ключа
	a.Record(ctx, 42, "1.2.3.4")

	if len(db.downloads) != 0 {
		t.Errorf("событий = %d, ожидается 0", len(db.downloads))
	}
}
