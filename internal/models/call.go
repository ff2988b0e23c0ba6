// internal/models/call.go
package models

import "time"

type CallState string

const (
	CallDraft     CallState = "DRAFT"
	CallPublished CallState = "PUBLISHED"
	CallPaused    CallState = "PAUSED"
	CallClosed    CallState = "CLOSED"
	CallFinalized CallState = "FINALIZED"
)

// callTransitions lists every legal edge. CLOSED -> CLOSED is handled as a no-op by the manager.
var callTransitions = map[CallState][]CallState{
	CallDraft:     {CallPublished},
	CallPublished: {CallPaused, CallClosed},
	CallPaused:    {CallPublished, CallClosed},
	CallClosed:    {CallFinalized},
}

// CanTransitionCall reports whether from -> to is an edge of the call state machine.
func CanTransitionCall(from, to CallState) bool {
	for _, next := range callTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CallState) Valid() bool {
	switch s {
	case CallDraft, CallPublished, CallPaused, CallClosed, CallFinalized:
		return true
	}
	return false
}

// Dimension is the evaluation dimension a criterion contributes to.
type Dimension string

const (
	DimensionSocioeconomic Dimension = "SOCIOECONOMIC"
	DimensionAcademic      Dimension = "ACADEMIC"
)

// Score caps per dimension.
const (
	MaxSocioeconomicScore = 70.0
	MaxAcademicScore      = 30.0
	MaxTotalScore         = MaxSocioeconomicScore + MaxAcademicScore
)

type Criterion struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dimension Dimension `json:"dimension"`
	Weight    int       `json:"weight"`
}

type Requirement struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Mandatory bool   `json:"mandatory"`
}

type Call struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Year         int           `json:"year"`
	Period       int           `json:"period"` // 1 or 2, half-year of the management period
	OpensAt      *time.Time    `json:"opensAt,omitempty"`
	ClosesAt     *time.Time    `json:"closesAt,omitempty"`
	ResultsAt    *time.Time    `json:"resultsAt,omitempty"`
	State        CallState     `json:"state"`
	Quotas       []Quota       `json:"quotas"`
	Criteria     []Criterion   `json:"criteria"`
	Requirements []Requirement `json:"requirements"`
	CreatedBy    string        `json:"createdBy"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// TotalCapacity sums the capacity of every quota of the call.
func (c *Call) TotalCapacity() int {
	total := 0
	for _, q := range c.Quotas {
		total += q.Capacity
	}
	return total
}

// WeightTotal sums criterion weights across all dimensions.
func (c *Call) WeightTotal() int {
	total := 0
	for _, cr := range c.Criteria {
		total += cr.Weight
	}
	return total
}

// DimensionWeight sums the weights of the criteria in one dimension.
func (c *Call) DimensionWeight(d Dimension) int {
	total := 0
	for _, cr := range c.Criteria {
		if cr.Dimension == d {
			total += cr.Weight
		}
	}
	return total
}

// MandatoryRequirements returns the ids of requirements an application must satisfy.
func (c *Call) MandatoryRequirements() []string {
	var ids []string
	for _, r := range c.Requirements {
		if r.Mandatory {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// AcceptsSubmissions is true only while the call is published.
func (c *Call) AcceptsSubmissions() bool {
	return c.State == CallPublished
}

// Evaluable is true while applications of the call may be scored.
func (c *Call) Evaluable() bool {
	switch c.State {
	case CallPublished, CallPaused, CallClosed:
		return true
	}
	return false
}
