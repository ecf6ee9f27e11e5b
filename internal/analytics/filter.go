package analytics

import "github.com/samber/lo"

// FilterActivities returns the records matching both the
// activity type and status predicates, in their original order.
// All (or "") disables a predicate. records is never modified and
// the result is always a fresh slice.
func FilterActivities(
	records []ActivityRecord, activityType, status string,
) []ActivityRecord {
	return lo.Filter(records, func(r ActivityRecord, _ int) bool {
		return matches(activityType, r.ActivityType) &&
			matches(status, r.Status)
	})
}

func matches(want, got string) bool {
	return want == "" || want == All || want == got
}

// ActivityTypes lists the distinct activity types of records in
// first-seen order.
func ActivityTypes(records []ActivityRecord) []string {
	return lo.Uniq(lo.Map(records, func(r ActivityRecord, _ int) string {
		return r.ActivityType
	}))
}

// Statuses lists the distinct statuses of records in first-seen
// order.
func Statuses(records []ActivityRecord) []string {
	return lo.Uniq(lo.Map(records, func(r ActivityRecord, _ int) string {
		return r.Status
	}))
}
