package memory

import (
	"testing"
	"time"
)

var rewardDay = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func TestScheduleReview(t *testing.T) {
	t.Parallel()

	first := ScheduleReview(ReviewSchedule{}, "Algebra", 100, rewardDay)
	if first.Topic != "algebra" || first.IntervalDays != 1 || first.Repetitions != 1 {
		t.Fatalf("first review = %#v", first)
	}
	if first.EFactor <= defaultEFactor {
		t.Fatalf("perfect recall must raise the e-factor, got %v", first.EFactor)
	}
	second := ScheduleReview(first, "algebra", 100, rewardDay)
	if second.IntervalDays != 6 || second.Repetitions != 2 {
		t.Fatalf("second review = %#v", second)
	}
	third := ScheduleReview(second, "algebra", 80, rewardDay)
	if third.IntervalDays <= 6 || third.Repetitions != 3 {
		t.Fatalf("third review = %#v", third)
	}
	if !third.NextReview.Equal(rewardDay.AddDate(0, 0, third.IntervalDays)) {
		t.Fatalf("NextReview = %v", third.NextReview)
	}

	lapse := ScheduleReview(third, "algebra", 20, rewardDay)
	if lapse.Repetitions != 0 || lapse.IntervalDays != 1 {
		t.Fatalf("lapse review = %#v", lapse)
	}
	if lapse.EFactor < minEFactor {
		t.Fatalf("EFactor below floor: %v", lapse.EFactor)
	}
}

func TestReviewQuality(t *testing.T) {
	t.Parallel()

	cases := map[int]int{0: 0, 9: 0, 10: 1, 50: 3, 80: 4, 90: 5, 100: 5, 150: 5, -5: 0}
	for score, want := range cases {
		if got := ReviewQuality(score); got != want {
			t.Fatalf("ReviewQuality(%d) = %d, want %d", score, got, want)
		}
	}
}

func TestAwardXP(t *testing.T) {
	t.Parallel()

	if AwardXP(0) != 1 || AwardXP(4) != 1 || AwardXP(10) != 2 || AwardXP(60) != 12 {
		t.Fatal("unexpected XP award")
	}
}

func TestNextStreak(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 5, 10, 22, 0, 0, 0, time.UTC)
	cases := []struct {
		streak int
		last   string
		want   int
	}{
		{0, "", 1},
		{3, "2026-05-10", 3},
		{3, "2026-05-09", 4},
		{3, "2026-05-01", 1},
		{3, "garbage", 1},
	}
	for _, tc := range cases {
		got, date := NextStreak(tc.streak, tc.last, day)
		if got != tc.want || date != "2026-05-10" {
			t.Fatalf("NextStreak(%d, %q) = %d, %q; want %d", tc.streak, tc.last, got, date, tc.want)
		}
	}
}
