package investigation

import (
	"fmt"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/models"
	"io"
	"strings"
	"time"
)

const defaultWidth = 80

//nolint:gochecknoglobals // styles
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	detectiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // red
			Bold(true)

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

// printer renders investigations for the terminal.
type printer struct {
	out   io.Writer
	width int
}

func (p printer) print(s string) {
	_, _ = io.WriteString(p.out, s)
}

func (p printer) wrap(s string) string {
	return wordwrap.String(s, max(p.width, 20)) //nolint:mnd // narrowest readable column
}

func (p printer) progress(progress detective.Progress) {
	line := progressStyle.Render(fmt.Sprintf("[%s] %s", progress.Stage, progress.Message))
	if progress.Fallback {
		line += mutedStyle.Render(" (built-in mystery)")
	}
	p.print(line + "\n")
}

func (p printer) list(invs []models.Investigation) {
	if len(invs) == 0 {
		p.print(mutedStyle.Render("No investigations yet.") + "\n")
		return
	}
	for _, inv := range invs {
		title := inv.Title
		if title == "" {
			title = inv.Prompt
		}
		p.print(fmt.Sprintf("%s  %s  %s\n", mutedStyle.Render(inv.ID), titleStyle.Render(title),
			mutedStyle.Render(string(inv.Status)+" "+inv.CreatedAt.Format(time.DateTime))))
	}
}

func (p printer) investigation(inv models.Investigation) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(inv.Title) + "  " + mutedStyle.Render(string(inv.Status)) + "\n")
	b.WriteString(p.wrap(inv.Setting) + "\n\n")

	b.WriteString(headingStyle.Render("Characters") + "\n")
	for _, c := range inv.Characters {
		line := fmt.Sprintf("%s %s (%s) reputation %d", mutedStyle.Render(c.ID), speakerStyle.Render(c.Name), c.Role,
			c.ReputationScore)
		if c.IsCulprit {
			line += alertStyle.Render(" culprit")
		}
		b.WriteString("  " + line + "\n")
	}

	b.WriteString("\n" + headingStyle.Render("Clues") + "\n")
	for _, c := range inv.Clues {
		mark := "?"
		if c.Discovered {
			mark = "✓"
		}
		b.WriteString(fmt.Sprintf("  %s %s %s: %s\n", mark, mutedStyle.Render(c.ID), c.Location, c.Description))
	}

	if len(inv.Leads) > 0 {
		b.WriteString("\n" + headingStyle.Render("Leads") + "\n")
		for _, l := range inv.Leads {
			b.WriteString(fmt.Sprintf("  %3.0f%% %s\n", l.Confidence*100, l.Text)) //nolint:mnd // percent
		}
	}

	if inv.Accusation != nil {
		verdict := "wrong"
		if inv.Accusation.Correct {
			verdict = "correct"
		}
		name := inv.Accusation.CharacterID
		if c, ok := inv.Character(inv.Accusation.CharacterID); ok {
			name = c.Name
		}
		b.WriteString("\n" + headingStyle.Render("Accusation") + fmt.Sprintf(" %s was %s\n", name, verdict))
	}
	p.print(b.String())
}

func (p printer) turn(turn detective.Turn) {
	var b strings.Builder
	if turn.Reply != nil {
		name := turn.Reply.CharacterID
		if c, ok := turn.Investigation.Character(turn.Reply.CharacterID); ok {
			name = c.Name
		}
		b.WriteString(speakerStyle.Render(name+": ") + p.wrap(turn.Reply.Text) + "\n")
		if turn.Fallback {
			b.WriteString(mutedStyle.Render("(the model did not answer, the character improvised)") + "\n")
		}
	}
	if turn.Alert != nil {
		b.WriteString(alertStyle.Render(alertLabel(turn.Alert.Kind)) + " " + p.wrap(turn.Alert.Message) + "\n")
	}
	for _, l := range turn.Leads {
		b.WriteString(detectiveStyle.Render("New lead: ") + p.wrap(l.Text) + "\n")
	}
	p.print(b.String())
}

func alertLabel(kind game.AlertKind) string {
	return "[" + strings.ToUpper(string(kind)) + "]"
}
