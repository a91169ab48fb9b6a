package formatter

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/statify/internal/models"
)

var styles = NewPalette("#1DB954", "#B3B3B3", "#626262")

// Palette holds the named [lipgloss.Style] values used by [RenderTable].
type Palette struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	muted  lipgloss.Style
	border lipgloss.Style
}

// NewPalette builds a palette from an accent, text and muted color.
func NewPalette(accent, text, muted string) *Palette {
	return &Palette{
		title:  NewBold(accent).MarginTop(1),
		header: NewBold(accent).Padding(0, 1),
		cell:   NewStyle(text).Padding(0, 1),
		muted:  NewEm(muted).Padding(0, 1),
		border: NewStyle(muted),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// RenderTable renders every snapshot as a titled table of its ranked entries.
func RenderTable(snapshots []models.StatSnapshot) (string, error) {
	if len(snapshots) == 0 {
		return styles.muted.Render("No saved stats") + "\n", nil
	}

	var b strings.Builder
	for _, s := range snapshots {
		entries, err := Entries(s)
		if err != nil {
			return "", err
		}

		b.WriteString(styles.title.Render(Title(s)))
		b.WriteString("  ")
		b.WriteString(styles.muted.Render(s.CreatedAt))
		b.WriteString("\n")
		b.WriteString(entryTable(entries).Render())
		b.WriteString("\n")
	}
	return b.String(), nil
}

func entryTable(entries []Entry) *table.Table {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Rank), e.Name, e.Detail})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.border).
		Headers("#", "NAME", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.header
			case col == 0:
				return styles.muted
			}
			return styles.cell
		})
}
