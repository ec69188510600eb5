// Package catalog names the output shapes of the course catalog API and
// the user fields the registrar attaches to authenticated sessions.
//
// The API itself lives elsewhere; these types are the contract consumers
// compile against. Outputs mirrors the API's output tree, and the aliases
// below are derived from fixed paths in it, so reshaping the API breaks
// consumers at compile time rather than at runtime.
package catalog

import (
	"time"

	"github.com/jmcleod/registrar/format"
)

// CourseStatus is the registration state of a course offering.
type CourseStatus string

const (
	CourseStatusDraft               CourseStatus = "DRAFT"
	CourseStatusOpenForRegistration CourseStatus = "OPEN_FOR_REGISTRATION"
	CourseStatusWaitlistOnly        CourseStatus = "WAITLIST_ONLY"
	CourseStatusClosed              CourseStatus = "CLOSED"
	CourseStatusCancelled           CourseStatus = "CANCELLED"
)

// Label is the display form of the status.
func (s CourseStatus) Label() string {
	return format.HumanizeEnum(string(s))
}

// Role is the registrar role carried on a user.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleRegistrar  Role = "REGISTRAR_ADMIN"
)

func (r Role) Label() string {
	return format.HumanizeEnum(string(r))
}

// UserFields are the additional fields the authentication service
// attaches to every user. Use it as the session fields type parameter.
type UserFields struct {
	Role          Role   `json:"role"`
	StudentNumber string `json:"studentNumber,omitempty"`
	DepartmentID  string `json:"departmentId,omitempty"`
}

// Outputs is the output tree of the catalog API.
type Outputs struct {
	Course     CourseOutputs     `json:"course"`
	Department DepartmentOutputs `json:"department"`
}

type CourseOutputs struct {
	List []CourseItem `json:"list"`
}

type DepartmentOutputs struct {
	List []DepartmentItem `json:"list"`
}

type CourseItem struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	Title       string         `json:"title"`
	Credits     int            `json:"credits"`
	Status      CourseStatus   `json:"status"`
	Department  DepartmentItem `json:"department"`
	Capacity    int            `json:"capacity"`
	Enrolled    int            `json:"enrolled"`
	OpensAt     *time.Time     `json:"opensAt,omitempty"`
	Description string         `json:"description,omitempty"`
}

type DepartmentItem struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Derived aliases. Each one tracks a path in Outputs.
type (
	// CourseListOutput is Outputs.Course.List.
	CourseListOutput = []CourseItem
	// Course is an element of Outputs.Course.List.
	Course = CourseItem
	// DepartmentListOutput is Outputs.Department.List.
	DepartmentListOutput = []DepartmentItem
	// Department is an element of Outputs.Department.List, and
	// Outputs.Course.List[].Department.
	Department = DepartmentItem
)

// SeatsLeft is the number of open seats, never negative.
func (c Course) SeatsLeft() int {
	if left := c.Capacity - c.Enrolled; left > 0 {
		return left
	}
	return 0
}
