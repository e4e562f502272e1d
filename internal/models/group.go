package models

import "time"

// Group is a staff-led camper group within a session.
type Group struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Name      string    `db:"name" json:"name"`
	StaffID   *string   `db:"staff_id" json:"staff_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GroupAssignment places one camper into one group.
type GroupAssignment struct {
	ID         string    `db:"id" json:"id"`
	GroupID    string    `db:"group_id" json:"group_id"`
	CamperID   string    `db:"camper_id" json:"camper_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// RosterEntry is a denormalized row for roster listings and exports.
type RosterEntry struct {
	GroupID     string  `db:"group_id" json:"group_id"`
	GroupName   string  `db:"group_name" json:"group_name"`
	CamperID    string  `db:"camper_id" json:"camper_id"`
	CamperName  string  `db:"camper_name" json:"camper_name"`
	ParentEmail string  `db:"parent_email" json:"parent_email"`
	Allergies   *string `db:"allergies" json:"allergies,omitempty"`
}
