package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the admin dashboard snapshot.
type Summary struct {
	TotalUsers            int64 `json:"total_users"`
	NewUsersThisWeek      int64 `json:"new_users_this_week"`
	NewUsersLastWeek      int64 `json:"new_users_last_week"`
	UsersWeekDelta        int64 `json:"users_week_delta"`
	PendingVerifications  int64 `json:"pending_verifications"`
	UrgentVerifications   int64 `json:"urgent_verifications"`
	VerifiedThisMonth     int64 `json:"verified_this_month"`
	VerifiedLastMonth     int64 `json:"verified_last_month"`
	VerifiedMonthDelta    int64 `json:"verified_month_delta"`
	RevenueThisMonthCents int64 `json:"revenue_this_month_cents"`
	TransactionsThisMonth int64 `json:"transactions_this_month"`

	RecentActivity []Activity `json:"recent_activity"`

	WeekStart  time.Time `json:"week_start"`
	MonthStart time.Time `json:"month_start"`
	ComputedAt time.Time `json:"computed_at"`
}

// Activity is one admin decision on a credential record.
type Activity struct {
	Kind      string     `db:"kind" json:"kind"`
	RecordID  uuid.UUID  `db:"record_id" json:"record_id"`
	Title     string     `db:"title" json:"title"`
	Status    string     `db:"status" json:"status"`
	OwnerID   uuid.UUID  `db:"owner_id" json:"owner_id"`
	OwnerName string     `db:"owner_name" json:"owner_name"`
	DecidedBy *uuid.UUID `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt time.Time  `db:"decided_at" json:"decided_at"`
}

type revenueRow struct {
	Cents int64 `db:"cents"`
	Count int64 `db:"count"`
}
