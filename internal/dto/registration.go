package dto

// CreateCamperRequest adds a child to the calling parent's account.
type CreateCamperRequest struct {
	FirstName     string  `json:"firstName" binding:"required"`
	LastName      string  `json:"lastName" binding:"required"`
	DateOfBirth   string  `json:"dateOfBirth" binding:"required"`
	Allergies     *string `json:"allergies,omitempty"`
	MedicalNotes  *string `json:"medicalNotes,omitempty"`
	EmergencyName *string `json:"emergencyName,omitempty"`
	EmergencyTel  *string `json:"emergencyTel,omitempty"`
}

// UpdateCamperRequest rewrites a camper's mutable fields.
type UpdateCamperRequest struct {
	FirstName     string  `json:"firstName" binding:"required"`
	LastName      string  `json:"lastName" binding:"required"`
	DateOfBirth   string  `json:"dateOfBirth" binding:"required"`
	Allergies     *string `json:"allergies,omitempty"`
	MedicalNotes  *string `json:"medicalNotes,omitempty"`
	EmergencyName *string `json:"emergencyName,omitempty"`
	EmergencyTel  *string `json:"emergencyTel,omitempty"`
}

// CreateRegistrationRequest enrolls a camper into a session.
type CreateRegistrationRequest struct {
	CamperID     string  `json:"camperId" binding:"required"`
	SessionID    string  `json:"sessionId" binding:"required"`
	SubmissionID *string `json:"submissionId,omitempty"`
}

// CreateGroupRequest creates a staff group within a session.
type CreateGroupRequest struct {
	SessionID string  `json:"sessionId" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	StaffID   *string `json:"staffId,omitempty"`
}

// AssignCamperRequest places a camper into a group.
type AssignCamperRequest struct {
	CamperID string `json:"camperId" binding:"required"`
}
