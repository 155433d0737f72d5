package domain

// Priority and status values are the original product's literal wire
// strings; stored rows depend on them.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusPaused     = "Paused"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

const (
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

const (
	AssignmentAssignee = "assignee"
	AssignmentPartner  = "partner"
	AssignmentNotified = "notified"
)

// MaxPartners bounds the number of partner assignments per task.
const MaxPartners = 5

func Statuses() []string {
	return []string{StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted, StatusCancelled}
}

func Priorities() []string {
	return []string{PriorityHigh, PriorityMedium, PriorityLow}
}

func ValidStatus(s string) bool {
	for _, v := range Statuses() {
		if v == s {
			return true
		}
	}
	return false
}

func ValidPriority(p string) bool {
	for _, v := range Priorities() {
		if v == p {
			return true
		}
	}
	return false
}

type Task struct {
	ID             string       `json:"id"`
	Description    string       `json:"description"`
	Priority       string       `json:"priority" enum:"High,Medium,Low"`
	Status         string       `json:"status" enum:"Not Started,In Progress,Paused,Completed,Cancelled"`
	StartDate      string       `json:"start_date" format:"date-time"`
	CompletionDate string       `json:"completion_date" format:"date-time"`
	PlannedLabor   float64      `json:"planned_labor"`
	ActualLabor    float64      `json:"actual_labor"`
	WorkSize       float64      `json:"work_size" minimum:"1" maximum:"5"`
	Roadmap        string       `json:"roadmap,omitempty"`
	TeamID         string       `json:"team_id"`
	CreatorID      string       `json:"creator_id"`
	Assignments    []Assignment `json:"assignees,omitempty"`
	CreatedAt      string       `json:"created_at" format:"date-time"`
	UpdatedAt      string       `json:"updated_at" format:"date-time"`
}

// Assignee returns the single responsible assignment, if present.
func (t Task) Assignee() *Assignment {
	for i := range t.Assignments {
		if t.Assignments[i].Role == AssignmentAssignee {
			return &t.Assignments[i]
		}
	}
	return nil
}

// Partners returns the secondary contributor assignments.
func (t Task) Partners() []Assignment {
	var out []Assignment
	for _, a := range t.Assignments {
		if a.Role == AssignmentPartner {
			out = append(out, a)
		}
	}
	return out
}

// AssignmentFor returns the assignee or partner assignment held by
// userID, or nil. Notified entries carry no labor and do not count.
func (t Task) AssignmentFor(userID string) *Assignment {
	for i := range t.Assignments {
		a := &t.Assignments[i]
		if a.UserID == userID && (a.Role == AssignmentAssignee || a.Role == AssignmentPartner) {
			return a
		}
	}
	return nil
}

// Assignment links a user to a task. Version increments on every row
// write and backs the optional optimistic check on effort logging.
type Assignment struct {
	TaskID       string  `json:"task_id,omitempty"`
	UserID       string  `json:"user_id"`
	Role         string  `json:"role" enum:"assignee,partner,notified"`
	PlannedLabor float64 `json:"planned_labor"`
	ActualLabor  float64 `json:"actual_labor"`
	Version      int64   `json:"version,omitempty"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"manager,employee"`
	TeamID    string `json:"team_id,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// HistoryEntry is one audit-trail row appended on task mutations.
type HistoryEntry struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
	Note    string `json:"note"`
	Payload string `json:"payload_json,omitempty"`
	TS      string `json:"ts" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
