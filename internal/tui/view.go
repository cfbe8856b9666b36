package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m Model) View() string {
	switch m.mode {
	case modePersonas:
		return m.viewPersonas()
	case modeChats:
		return m.viewChats()
	default:
		return m.viewChat()
	}
}

func (m Model) viewPersonas() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Choose a persona"))
	b.WriteString("\n\n")
	if len(m.personas) == 0 {
		b.WriteString(dimStyle.Render("  No personas yet. Create one through the HTTP API."))
	}
	for i, p := range m.personas {
		b.WriteString(pickerLine(i == m.cursor, p.Name))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  ↑/↓ move • enter start • q quit"))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) viewChats() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Saved chats"))
	b.WriteString("\n\n")
	for i, c := range m.chats {
		label := fmt.Sprintf("%2d. %s  %s", i+1, c.Title, dimStyle.Render(c.Timestamp.Format("2006-01-02 15:04")))
		b.WriteString(pickerLine(i == m.cursor, label))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  ↑/↓ move • enter load • esc back"))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func pickerLine(selected bool, label string) string {
	if selected {
		return cursorStyle.Render("› "+label) + "\n"
	}
	return "  " + label + "\n"
}

func (m Model) viewChat() string {
	header := "Z Tavern"
	if p := m.snapshot.Persona; p != nil {
		header = p.Name
	}
	if m.snapshot.Title != "" {
		header += dimStyle.Render(" · " + m.snapshot.Title)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(header),
		m.viewport.View(),
		inputBoxStyle.Width(max(m.width-2, 10)).Render(m.input.View()),
		m.footer(),
	)
}

func (m Model) footer() string {
	switch {
	case m.snapshot.Busy:
		return statusStyle.Render(m.spinner.View() + " thinking...")
	case m.err != nil:
		return errorStyle.Render(m.err.Error())
	case m.status != "":
		return statusStyle.Render(m.status)
	default:
		return ""
	}
}

func (m Model) renderMessages() string {
	if len(m.snapshot.Messages) == 0 {
		return dimStyle.Render("No messages yet.")
	}

	name := "Persona"
	if m.snapshot.Persona != nil {
		name = m.snapshot.Persona.Name
	}

	var b strings.Builder
	for i, msg := range m.snapshot.Messages {
		index := indexStyle.Render(fmt.Sprintf("[%d]", i+1))
		if msg.IsUser() {
			b.WriteString(index + " " + userLabelStyle.Render("You") + "\n")
			b.WriteString(msg.Content + "\n\n")
			continue
		}
		b.WriteString(index + " " + modelLabelStyle.Render(name) + "\n")
		b.WriteString(m.renderMarkdown(msg.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return strings.TrimLeft(out, "\n")
}
