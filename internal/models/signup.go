// Package models provides the persisted data models of the scanner.
package models

import "time"

// DefaultSignupSource is recorded when a signup does not name its origin
const DefaultSignupSource = "landing_page"

// Signup represents a contact email left by a visitor
type Signup struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Source    string    `json:"source" db:"source"`
	UserAgent string    `json:"userAgent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SignupStats aggregates signups for the dashboard
type SignupStats struct {
	Total    int64            `json:"totalSignups"`
	Today    int64            `json:"todaySignups"`
	LastWeek int64            `json:"weeklySignups"`
	BySource map[string]int64 `json:"sourceBreakdown"`
}
