package memory

import (
	"math"
	"time"
)

const (
	defaultEFactor = 2.5
	minEFactor     = 1.3
	dateLayout     = "2006-01-02"
)

// ReviewQuality maps a 0-100 quiz score onto the SM-2 0-5 recall scale.
func ReviewQuality(score int) int {
	q := int(math.Round(float64(score) / 20))
	if q < 0 {
		return 0
	}
	if q > 5 {
		return 5
	}
	return q
}

// ScheduleReview advances the SM-2 schedule for topic after a graded quiz.
// A zero prev starts a fresh schedule.
func ScheduleReview(prev ReviewSchedule, topic string, score int, now time.Time) ReviewSchedule {
	next := prev
	next.Topic = NormalizeTopic(topic)
	if next.EFactor == 0 {
		next.EFactor = defaultEFactor
	}

	quality := ReviewQuality(score)
	if quality < 3 {
		next.Repetitions = 0
		next.IntervalDays = 1
	} else {
		switch next.Repetitions {
		case 0:
			next.IntervalDays = 1
		case 1:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Round(float64(next.IntervalDays) * next.EFactor))
		}
		next.Repetitions++
	}

	miss := float64(5 - quality)
	next.EFactor = math.Max(minEFactor, next.EFactor+(0.1-miss*(0.08+miss*0.02)))
	next.LastReview = now.UTC()
	next.NextReview = now.UTC().AddDate(0, 0, next.IntervalDays)
	return next
}

// AwardXP grants 1 XP per 5 study minutes, at least 1.
func AwardXP(minutes int) int {
	if award := minutes / 5; award > 1 {
		return award
	}
	return 1
}

// NextStreak returns the daily streak and study date after studying on
// today. lastDate uses the YYYY-MM-DD layout; anything unparsable restarts
// the streak.
func NextStreak(streak int, lastDate string, today time.Time) (int, string) {
	todayStr := today.UTC().Format(dateLayout)
	last, err := time.Parse(dateLayout, lastDate)
	if lastDate == "" || err != nil {
		return 1, todayStr
	}
	day, _ := time.Parse(dateLayout, todayStr)
	switch {
	case day.Equal(last):
		if streak < 1 {
			streak = 1
		}
		return streak, todayStr
	case day.Equal(last.AddDate(0, 0, 1)):
		return streak + 1, todayStr
	default:
		return 1, todayStr
	}
}

// creditStudy adds minutes to the profile and derives XP and the daily
// streak from the stored values.
func creditStudy(p *StudentProfile, minutes int, at time.Time) {
	if minutes <= 0 {
		return
	}
	p.TotalStudyMinutes += minutes
	p.XP += AwardXP(minutes)
	p.Streak, p.LastStudyDate = NextStreak(p.Streak, p.LastStudyDate, at)
}
