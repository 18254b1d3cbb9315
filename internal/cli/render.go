package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/position"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	listTitleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(ac("240", "245"))
	doneStyle      = lipgloss.NewStyle().Strikethrough(true).Foreground(ac("240", "245"))
	overdueStyle   = lipgloss.NewStyle().Foreground(ac("160", "203"))

	riskStyles = map[domain.RiskLevel]lipgloss.Style{
		domain.RiskLow:    lipgloss.NewStyle().Foreground(ac("28", "114")),
		domain.RiskMedium: lipgloss.NewStyle().Foreground(ac("136", "221")),
		domain.RiskHigh:   lipgloss.NewStyle().Foreground(ac("160", "203")).Bold(true),
	}
)

// renderBoard writes a plain-text view of ws, lists and cards in position
// order. now anchors relative due dates.
func renderBoard(w io.Writer, ws domain.Workspace, seq int64, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("workspace %s @ seq %d", ws.ID, seq)))
	if len(ws.Lists) == 0 {
		b.WriteString(mutedStyle.Render("(no lists)") + "\n")
	}
	listPositions := make([]float64, len(ws.Lists))
	for i, l := range ws.Lists {
		listPositions[i] = l.Position
		fmt.Fprintf(&b, "\n%s %s\n", listTitleStyle.Render(l.Title), mutedStyle.Render(fmt.Sprintf("[%s] %d cards", l.ID, len(l.Cards))))
		cardPositions := make([]float64, len(l.Cards))
		for j, c := range l.Cards {
			cardPositions[j] = c.Position
			b.WriteString("  " + renderCard(c, now) + "\n")
		}
		if position.Collides(cardPositions) {
			b.WriteString("  " + overdueStyle.Render("card positions collide; run: boardsync renumber --list "+l.ID.String()) + "\n")
		}
	}
	if position.Collides(listPositions) {
		b.WriteString("\n" + overdueStyle.Render("list positions collide; run: boardsync renumber") + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderCard(c domain.Card, now time.Time) string {
	title := c.Title
	if c.IsCompleted {
		title = doneStyle.Render(title)
	}

	risk, ok := riskStyles[c.RiskLevel]
	if !ok {
		risk = mutedStyle
	}
	parts := []string{risk.Render("●"), title, mutedStyle.Render(c.ID.String())}

	if c.DueAt != nil {
		due := "due " + humanize.RelTime(*c.DueAt, now, "ago", "from now")
		if !c.IsCompleted && c.DueAt.Before(now) {
			due = overdueStyle.Render(due)
		} else {
			due = mutedStyle.Render(due)
		}
		parts = append(parts, due)
	}
	if total := len(c.Tasks); total > 0 {
		done := 0
		for _, t := range c.Tasks {
			if t.IsDone() {
				done++
			}
		}
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d/%d tasks", done, total)))
	}
	if len(c.AssignedMembers) > 0 {
		names := make([]string, len(c.AssignedMembers))
		for i, m := range c.AssignedMembers {
			names[i] = m.DisplayName
		}
		parts = append(parts, mutedStyle.Render("@"+strings.Join(names, ", @")))
	}
	return strings.Join(parts, " ")
}
