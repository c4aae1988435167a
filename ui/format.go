package ui

import (
	"fmt"

	"github.com/honganh1206/stargazer/preview"
)

const (
	SuccessSymbol = "✓"
	ErrorSymbol   = "✗"
	UnreadSymbol  = "●"
)

// FormatPreview renders one list row using tview color tags.
func FormatPreview(p preview.Preview) (main, secondary string) {
	title := p.Title
	if title == "" {
		title = p.TeamID
	}

	if p.UnreadCount > 0 {
		main = fmt.Sprintf("[yellow]%s [white::b]%s [yellow](%d)[white::-]", UnreadSymbol, title, p.UnreadCount)
	} else {
		main = fmt.Sprintf("  [white::-]%s", title)
	}

	secondary = p.RecentMessage
	if secondary == "" {
		secondary = "[gray]no messages yet[-]"
	}
	return main, secondary
}

func FormatStatus(status string, err error) string {
	if err != nil {
		return fmt.Sprintf("[red]%s [white::-]%s: %v", ErrorSymbol, status, err)
	}
	return fmt.Sprintf("[green]%s [white::-]%s", SuccessSymbol, status)
}
