package dto

// DashboardSummary aggregates per-camp counters for role dashboards.
type DashboardSummary struct {
	CampID              string `json:"camp_id"`
	ActiveSessions      int    `json:"active_sessions"`
	TotalRegistrations  int    `json:"total_registrations"`
	PendingAIActions    int    `json:"pending_ai_actions"`
	SubmissionsToday    int    `json:"submissions_today"`
	PublishedForms      int    `json:"published_forms"`
	OpenIncidentsWeekly int    `json:"open_incidents_weekly"`
}
