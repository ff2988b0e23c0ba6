// internal/models/quota.go
package models

import "time"

// FacultyAll matches any applicant faculty.
const FacultyAll = "ALL"

type Quota struct {
	ID              string `json:"id"`
	CallID          string `json:"callId"`
	ScholarshipType string `json:"scholarshipType"`
	Faculty         string `json:"faculty"`
	Capacity        int    `json:"capacity"`
	Reserved        int    `json:"reserved"`
	Granted         int    `json:"granted"`
}

// Available is capacity not yet reserved.
func (q Quota) Available() int {
	return q.Capacity - q.Reserved
}

// Matches reports whether the quota can serve an applicant of the given type and faculty.
func (q Quota) Matches(scholarshipType, faculty string) bool {
	if q.ScholarshipType != scholarshipType {
		return false
	}
	return q.Faculty == faculty || q.Faculty == FacultyAll
}

// Consistent checks 0 <= granted <= reserved <= capacity.
func (q Quota) Consistent() bool {
	return q.Granted >= 0 && q.Granted <= q.Reserved && q.Reserved <= q.Capacity
}

type HandleStatus string

const (
	HandleReserved HandleStatus = "RESERVED"
	HandleGranted  HandleStatus = "GRANTED"
	HandleReleased HandleStatus = "RELEASED"
)

// QuotaHandle is one unit of reserved capacity held by an application.
type QuotaHandle struct {
	ID            string       `json:"id"`
	QuotaID       string       `json:"quotaId"`
	ApplicationID string       `json:"applicationId"`
	Status        HandleStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// GrantOutcome is the result of converting a reservation into a grant.
type GrantOutcome string

const (
	GrantApplied        GrantOutcome = "GRANTED"
	GrantAlreadyApplied GrantOutcome = "ALREADY_GRANTED"
	GrantRejected       GrantOutcome = "REJECTED"
)

// ReleaseOutcome is the result of returning a reservation.
type ReleaseOutcome string

const (
	ReleaseApplied        ReleaseOutcome = "RELEASED"
	ReleaseAlreadyApplied ReleaseOutcome = "ALREADY_RELEASED"
	ReleaseRejected       ReleaseOutcome = "REJECTED"
)
