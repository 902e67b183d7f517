package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"weightlog/internal/domain"
)

func TestWeightRepository_UpsertSameDay(t *testing.T) {
	db := New()
	ctx := context.Background()
	userID := int64(1)

	morning := time.Date(2026, 3, 10, 7, 0, 0, 0, time.Local)
	first, err := db.Upsert(ctx, userID, 70, morning)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.ID == 0 {
		t.Error("expected non-zero ID")
	}

	second, err := db.Upsert(ctx, userID, 72, morning.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same row, got IDs %d and %d", first.ID, second.ID)
	}

	rows, err := db.QueryDays(ctx, userID, "2026-03-10", "2026-03-10")
	if err != nil {
		t.Fatalf("QueryDays: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].WeightKg != 72 {
		t.Errorf("expected 72, got %f", rows[0].WeightKg)
	}

	// Other user sees nothing
	other, _ := db.QueryDays(ctx, 999, "2026-03-10", "2026-03-10")
	if len(other) != 0 {
		t.Error("expected 0 rows for other user")
	}
}

func TestWeightRepository_RangeAndOrder(t *testing.T) {
	db := New()
	ctx := context.Background()
	faker := gofakeit.New(42)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	// Insert out of order to check sorting.
	for _, d := range []int{4, 0, 2, 1, 3} {
		if _, err := db.Upsert(ctx, 1, faker.Float64Range(50, 90), base.AddDate(0, 0, d)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	rows, err := db.QueryRange(ctx, 1, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Timestamp.Before(rows[i].Timestamp) {
			t.Errorf("rows not ascending at %d", i)
		}
	}

	none, err := db.QueryRange(ctx, 1, base.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}

	days, _ := db.QueryDays(ctx, 1, "2026-03-02", "2026-03-04")
	if len(days) != 3 || days[0].Day != "2026-03-02" || days[2].Day != "2026-03-04" {
		t.Errorf("unexpected days %+v", days)
	}

	latest, err := db.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Day != "2026-03-05" {
		t.Errorf("expected latest on 2026-03-05, got %+v", latest)
	}
}

func TestWeightRepository_ByDayAndDelete(t *testing.T) {
	db := New()
	ctx := context.Background()

	obs, _ := db.Upsert(ctx, 1, 65, time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local))

	got, err := db.ByDay(ctx, 1, "2026-03-10")
	if err != nil {
		t.Fatalf("ByDay: %v", err)
	}
	if got == nil || got.ID != obs.ID {
		t.Fatalf("expected observation %d, got %+v", obs.ID, got)
	}

	// Another user's delete is a no-op.
	if err := db.Delete(ctx, 2, obs.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := db.ByDay(ctx, 1, "2026-03-10"); got == nil {
		t.Fatal("row deleted by another user")
	}

	if err := db.Delete(ctx, 1, obs.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Delete(ctx, 1, 12345); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
	if got, _ := db.ByDay(ctx, 1, "2026-03-10"); got != nil {
		t.Error("expected nil (deleted)")
	}
	if latest, _ := db.Latest(ctx, 1); latest != nil {
		t.Error("expected no latest after delete")
	}
}

func TestWeightRepository_ConcurrentUpsert(t *testing.T) {
	db := New()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = db.Upsert(ctx, 1, 60+float64(i)/10, at.Add(time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()

	rows, _ := db.QueryDays(ctx, 1, "2026-03-10", "2026-03-10")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestPreferencesRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	p, err := db.GetPreferences(ctx, 1)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil before save")
	}

	on := domain.DefaultPreferences(1)
	on.ReminderEnabled = true
	off := domain.DefaultPreferences(2)
	_ = db.SavePreferences(ctx, on)
	_ = db.SavePreferences(ctx, off)

	p, _ = db.GetPreferences(ctx, 1)
	if p == nil || !p.ReminderEnabled {
		t.Errorf("unexpected preferences %+v", p)
	}
	reminders, _ := db.ListReminders(ctx)
	if len(reminders) != 1 || reminders[0].UserID != 1 {
		t.Errorf("expected only user 1, got %+v", reminders)
	}
}

func TestUserRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	u, err := db.Create(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Username != "bob" {
		t.Errorf("expected bob, got %s", u.Username)
	}
	if _, err := db.Create(ctx, "bob", "hash"); err == nil {
		t.Error("expected duplicate username error")
	}

	u2, err := db.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u2 == nil || u2.ID != u.ID {
		t.Error("failed to retrieve user")
	}

	if err := db.UpdatePassword(ctx, u.ID, "newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	u3, _ := db.GetByID(ctx, u.ID)
	if u3 == nil || u3.PasswordHash != "newhash" {
		t.Errorf("password not updated: %+v", u3)
	}

	count, _ := db.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestSessionRepository(t *testing.T) {
	db := New()
	repo := db.NewSessionRepo()
	ctx := context.Background()

	err := repo.Create(ctx, 1, "token123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = repo.Create(ctx, 1, "stale", time.Now().Add(-time.Hour))
	_ = repo.Create(ctx, 2, "other", time.Now().Add(time.Hour))

	sess, err := repo.GetByToken(ctx, "token123")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if sess == nil || sess.UserID != 1 {
		t.Errorf("unexpected session %+v", sess)
	}

	_ = repo.DeleteExpired(ctx)
	if s, _ := repo.GetByToken(ctx, "stale"); s != nil {
		t.Error("expected expired session purged")
	}

	_ = repo.Delete(ctx, "token123")
	sess, _ = repo.GetByToken(ctx, "token123")
	if sess != nil {
		t.Error("expected nil (deleted)")
	}

	_ = repo.DeleteForUser(ctx, 2)
	if s, _ := repo.GetByToken(ctx, "other"); s != nil {
		t.Error("expected user sessions deleted")
	}
}
