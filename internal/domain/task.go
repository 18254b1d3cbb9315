package domain

import "github.com/google/uuid"

// Subtask is the leaf of the board hierarchy.
type Subtask struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	IsDone   bool      `json:"is_done"`
	Position float64   `json:"position"`
}

// Task is a checklist entry on a card. Done is the explicit flag; IsDone
// reports the effective state, which is derived from subtasks when present.
type Task struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Done     bool      `json:"is_done"`
	Position float64   `json:"position"`
	Subtasks []Subtask `json:"subtasks"`
}

// IsDone reports whether all subtasks are done. A task without subtasks
// falls back to its explicit flag.
func (t Task) IsDone() bool {
	if len(t.Subtasks) == 0 {
		return t.Done
	}
	for _, st := range t.Subtasks {
		if !st.IsDone {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.Subtasks != nil {
		out.Subtasks = make([]Subtask, len(t.Subtasks))
		copy(out.Subtasks, t.Subtasks)
	}
	return out
}

// TaskPatch is a shallow field update for a task.
type TaskPatch struct {
	Title *string `json:"title,omitempty"`
	Done  *bool   `json:"is_done,omitempty"`
}

// Apply merges the set fields into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Done != nil {
		t.Done = *p.Done
	}
}

// SubtaskPatch is a shallow field update for a subtask.
type SubtaskPatch struct {
	Title  *string `json:"title,omitempty"`
	IsDone *bool   `json:"is_done,omitempty"`
}

// Apply merges the set fields into st.
func (p SubtaskPatch) Apply(st *Subtask) {
	if p.Title != nil {
		st.Title = *p.Title
	}
	if p.IsDone != nil {
		st.IsDone = *p.IsDone
	}
}
