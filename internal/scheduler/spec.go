package scheduler

import (
	"fmt"
	"strings"
	"time"
)

var cronDays = map[string]string{
	"mon": "MON", "monday": "MON",
	"tue": "TUE", "tuesday": "TUE",
	"wed": "WED", "wednesday": "WED",
	"thu": "THU", "thursday": "THU",
	"fri": "FRI", "friday": "FRI",
	"sat": "SAT", "saturday": "SAT",
	"sun": "SUN", "sunday": "SUN",
}

// CronSpecs builds one six-field cron expression per run time, firing
// on the given weekdays. Days use mon..sun names, run times HH:MM in
// the scheduler's timezone.
func CronSpecs(days []string, runTimes []string) ([]string, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("no schedule days configured")
	}
	if len(runTimes) == 0 {
		return nil, fmt.Errorf("no schedule run times configured")
	}

	names := make([]string, 0, len(days))
	for _, day := range days {
		name, ok := cronDays[strings.ToLower(strings.TrimSpace(day))]
		if !ok {
			return nil, fmt.Errorf("invalid schedule day %q", day)
		}
		names = append(names, name)
	}
	dayExpr := strings.Join(names, ",")

	specs := make([]string, 0, len(runTimes))
	for _, runTime := range runTimes {
		at, err := time.Parse("15:04", strings.TrimSpace(runTime))
		if err != nil {
			return nil, fmt.Errorf("invalid run time %q (expected HH:MM): %w", runTime, err)
		}
		specs = append(specs, fmt.Sprintf("0 %d %d * * %s", at.Minute(), at.Hour(), dayExpr))
	}
	return specs, nil
}
