package main

import (
	"fmt"
	"strconv"
	"strings"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

func formatStats(sum *app.Summary, prefs domain.UserPreferences, days int) string {
	var b strings.Builder
	if sum.Statistics == nil {
		fmt.Fprintf(&b, "no records in the last %d days\n", days)
		return b.String()
	}
	unit := prefs.Unit
	st := sum.Statistics.In(unit)
	w := func(v float64) string { return domain.FormatWeight(v, unit) }

	fmt.Fprintf(&b, "last %d days, %d records\n", days, len(sum.Records))
	fmt.Fprintf(&b, "latest   %s\n", w(st.LatestWeight))
	fmt.Fprintf(&b, "min      %s\n", w(st.MinWeight))
	fmt.Fprintf(&b, "max      %s\n", w(st.MaxWeight))
	fmt.Fprintf(&b, "average  %s\n", w(st.AvgWeight))
	fmt.Fprintf(&b, "change   %+.1f %s\n", st.Change, unit.Label())

	latestKg := sum.Statistics.LatestWeight
	if bmi := domain.BMI(latestKg, prefs.HeightCm); bmi > 0 {
		fmt.Fprintf(&b, "BMI      %.1f (%s)\n", bmi, domain.CategorizeBMI(bmi))
	}
	if remaining, ok := domain.Progress(latestKg, prefs.TargetWeightKg); ok {
		switch {
		case remaining > 0:
			fmt.Fprintf(&b, "target   %s to go\n", w(domain.Convert(remaining, unit)))
		default:
			fmt.Fprintf(&b, "target   reached\n")
		}
	}
	return b.String()
}

func formatSettings(p domain.UserPreferences) string {
	var b strings.Builder
	height := "not set"
	if p.HeightCm > 0 {
		height = fmt.Sprintf("%.1f cm", p.HeightCm)
	}
	target := "not set"
	if p.TargetWeightKg > 0 {
		target = domain.FormatWeight(domain.Convert(p.TargetWeightKg, p.Unit), p.Unit)
	}
	reminder := "off"
	if p.ReminderEnabled {
		reminder = "daily at " + p.ReminderTime()
	}
	fmt.Fprintf(&b, "unit      %s\n", p.Unit)
	fmt.Fprintf(&b, "height    %s\n", height)
	fmt.Fprintf(&b, "target    %s\n", target)
	fmt.Fprintf(&b, "reminder  %s\n", reminder)
	return b.String()
}

// presets renders the offered trailing windows, e.g. "7, 30, 90".
func presets() string {
	out := make([]string, 0, len(app.TimeRanges))
	for _, r := range app.TimeRanges {
		out = append(out, strconv.Itoa(int(r)))
	}
	return strings.Join(out, ", ")
}
