package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies how risky a card is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// ItemKind names a level of the board hierarchy.
type ItemKind string

const (
	KindWorkspace ItemKind = "workspace"
	KindList      ItemKind = "list"
	KindCard      ItemKind = "card"
	KindTask      ItemKind = "task"
	KindSubtask   ItemKind = "subtask"
)

// Ref identifies a single node in the board tree.
type Ref struct {
	Kind ItemKind  `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func WorkspaceRef(id uuid.UUID) Ref { return Ref{Kind: KindWorkspace, ID: id} }
func ListRef(id uuid.UUID) Ref      { return Ref{Kind: KindList, ID: id} }
func CardRef(id uuid.UUID) Ref      { return Ref{Kind: KindCard, ID: id} }
func TaskRef(id uuid.UUID) Ref      { return Ref{Kind: KindTask, ID: id} }
func SubtaskRef(id uuid.UUID) Ref   { return Ref{Kind: KindSubtask, ID: id} }

func (r Ref) String() string { return string(r.Kind) + ":" + r.ID.String() }

// MemberRef is a weak reference to a workspace member. Cards hold copies;
// the member directory owns the record.
type MemberRef struct {
	StudentID   string `json:"student_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type Card struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	RiskLevel       RiskLevel   `json:"risk_level"`
	DueAt           *time.Time  `json:"due_at,omitempty"`
	IsCompleted     bool        `json:"is_completed"`
	Position        float64     `json:"position"`
	AssignedMembers []MemberRef `json:"assigned_members"`
	Tasks           []Task      `json:"tasks"`
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.DueAt != nil {
		due := *c.DueAt
		out.DueAt = &due
	}
	if c.AssignedMembers != nil {
		out.AssignedMembers = make([]MemberRef, len(c.AssignedMembers))
		copy(out.AssignedMembers, c.AssignedMembers)
	}
	if c.Tasks != nil {
		out.Tasks = make([]Task, len(c.Tasks))
		for i := range c.Tasks {
			out.Tasks[i] = c.Tasks[i].Clone()
		}
	}
	return out
}

// HasMember reports whether studentID is assigned to the card.
func (c Card) HasMember(studentID string) bool {
	for _, m := range c.AssignedMembers {
		if m.StudentID == studentID {
			return true
		}
	}
	return false
}

// CardPatch is a shallow field update for a card. It never carries
// position or children. ClearDueAt removes the due date and wins over DueAt.
type CardPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	RiskLevel   *RiskLevel `json:"risk_level,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	ClearDueAt  bool       `json:"clear_due_at,omitempty"`
	IsCompleted *bool      `json:"is_completed,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CardPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.RiskLevel == nil &&
		p.DueAt == nil && !p.ClearDueAt && p.IsCompleted == nil
}

// Apply merges the set fields into c.
func (p CardPatch) Apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.RiskLevel != nil {
		c.RiskLevel = *p.RiskLevel
	}
	switch {
	case p.ClearDueAt:
		c.DueAt = nil
	case p.DueAt != nil:
		due := *p.DueAt
		c.DueAt = &due
	}
	if p.IsCompleted != nil {
		c.IsCompleted = *p.IsCompleted
	}
}

type List struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Position float64   `json:"position"`
	Cards    []Card    `json:"cards"`
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	out := l
	if l.Cards != nil {
		out.Cards = make([]Card, len(l.Cards))
		for i := range l.Cards {
			out.Cards[i] = l.Cards[i].Clone()
		}
	}
	return out
}

// ListPatch is a shallow field update for a list.
type ListPatch struct {
	Title *string `json:"title,omitempty"`
}

// Apply merges the set fields into l.
func (p ListPatch) Apply(l *List) {
	if p.Title != nil {
		l.Title = *p.Title
	}
}

// Workspace is the root of one board.
type Workspace struct {
	ID    uuid.UUID `json:"id"`
	Lists []List    `json:"lists"`
}

// Clone returns a deep copy of the workspace.
func (w Workspace) Clone() Workspace {
	out := w
	if w.Lists != nil {
		out.Lists = make([]List, len(w.Lists))
		for i := range w.Lists {
			out.Lists[i] = w.Lists[i].Clone()
		}
	}
	return out
}
