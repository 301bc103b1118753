// Package export renders the admin dashboard as xlsx, pdf or csv.
package export

import (
	"fmt"
	"time"

	"trustline/portal-backend/internal/admin/dashboard"
)

type Column struct {
	Key   string
	Label string
}

// Table is one sheet of an export.
type Table struct {
	Name    string
	Columns []Column
	Rows    []map[string]any
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// Tables lays a summary out as a metrics table and a recent activity table.
func Tables(s *dashboard.Summary) []Table {
	metric := func(name string, value any) map[string]any {
		return map[string]any{"metric": name, "value": value}
	}
	metrics := Table{
		Name:    "Summary",
		Columns: []Column{{"metric", "Metric"}, {"value", "Value"}},
		Rows: []map[string]any{
			metric("Total users", s.TotalUsers),
			metric("New users this week", s.NewUsersThisWeek),
			metric("New users last week", s.NewUsersLastWeek),
			metric("Week over week", s.UsersWeekDelta),
			metric("Pending verifications", s.PendingVerifications),
			metric("Urgent verifications", s.UrgentVerifications),
			metric("Verified this month", s.VerifiedThisMonth),
			metric("Verified last month", s.VerifiedLastMonth),
			metric("Month over month", s.VerifiedMonthDelta),
			metric("Revenue this month", formatCents(s.RevenueThisMonthCents)),
			metric("Transactions this month", s.TransactionsThisMonth),
			metric("Week starting", s.WeekStart),
			metric("Month starting", s.MonthStart),
		},
	}

	activity := Table{
		Name: "Recent activity",
		Columns: []Column{
			{"decided_at", "Decided at"},
			{"kind", "Kind"},
			{"title", "Credential"},
			{"owner", "Owner"},
			{"status", "Status"},
		},
	}
	for _, a := range s.RecentActivity {
		activity.Rows = append(activity.Rows, map[string]any{
			"decided_at": a.DecidedAt,
			"kind":       a.Kind,
			"title":      a.Title,
			"owner":      a.OwnerName,
			"status":     a.Status,
		})
	}
	return []Table{metrics, activity}
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func formatValue(val any, dateFormat string) string {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(dateFormat)
	case float64:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
