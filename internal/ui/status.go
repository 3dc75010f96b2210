package ui

import (
	"fmt"
	"strings"

	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderStatus renders a scene snapshot: a summary line, the outputs, every
// layer with its views from the top down, and the seats.
func RenderStatus(st *ipc.Status) string {
	var b strings.Builder

	b.WriteString(summaryLine(st))
	b.WriteString("\n\n")

	b.WriteString(SubheaderStyle.Render("Outputs"))
	b.WriteString("\n")
	if len(st.Outputs) == 0 {
		b.WriteString(SubtleStyle.Render("  no outputs"))
		b.WriteString("\n")
	} else {
		b.WriteString(outputTable(st.Outputs))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(SubheaderStyle.Render("Layers"))
	b.WriteString("\n")
	for _, l := range st.Layers {
		b.WriteString(layerHeader(l))
		b.WriteString("\n")
		if len(l.Views) > 0 {
			b.WriteString(viewTable(l.Views))
			b.WriteString("\n")
		}
	}

	if len(st.Seats) > 0 {
		b.WriteString("\n")
		b.WriteString(SubheaderStyle.Render("Seats"))
		b.WriteString("\n")
		for _, s := range st.Seats {
			b.WriteString(seatLine(s))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func summaryLine(st *ipc.Status) string {
	session := FormatStatus(true, "active")
	if st.Locked {
		session = LockedIndicator + " " + WarningStyle.Render("locked")
	}
	return fmt.Sprintf("%s %s  %s %s  %s",
		SubtleStyle.Render("shell"), BoldStyle.Render(st.Shell),
		SubtleStyle.Render("backend"), BoldStyle.Render(st.Backend),
		session)
}

// FormatMode renders a mode with its refresh rate in Hz.
func FormatMode(width, height, refresh int32) string {
	if refresh == 0 {
		return fmt.Sprintf("%dx%d", width, height)
	}
	return fmt.Sprintf("%dx%d@%.3fHz", width, height, float64(refresh)/1000)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Headers(headers...)
}

func outputTable(outputs []ipc.OutputStatus) string {
	rows := make([][]string, 0, len(outputs))
	off := make(map[int]bool)
	for i, o := range outputs {
		rows = append(rows, []string{
			o.Name,
			fmt.Sprintf("%d,%d", o.X, o.Y),
			FormatMode(o.Width, o.Height, o.Refresh),
			o.Power,
		})
		off[i] = o.Power != scene.PowerOn.String()
	}
	return newTable("OUTPUT", "POSITION", "MODE", "POWER").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case off[row]:
				return TableDimCellStyle
			}
			return TableCellStyle
		}).
		Render()
}

func layerHeader(l ipc.LayerStatus) string {
	pos := scene.LayerPosition(l.Position)
	count := "empty"
	switch n := len(l.Views); n {
	case 0:
	case 1:
		count = "1 view"
	default:
		count = fmt.Sprintf("%d views", n)
	}
	return fmt.Sprintf("  %s %s %s",
		InfoStyle.Render(l.Name),
		SubtleStyle.Render("("+pos.String()+")"),
		SubtleStyle.Render(count))
}

func viewTable(views []ipc.ViewStatus) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		client := v.Client
		if client == "" {
			client = "-"
		}
		output := v.Output
		if output == "" {
			output = "-"
		}
		rows = append(rows, []string{
			v.Label,
			client,
			fmt.Sprintf("%dx%d+%g+%g", v.Width, v.Height, v.X, v.Y),
			fmt.Sprintf("%.2f", v.Alpha),
			output,
		})
	}
	return newTable("SURFACE", "CLIENT", "GEOMETRY", "ALPHA", "OUTPUT").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row < len(views) && !views[row].Mapped:
				return TableDimCellStyle
			}
			return TableCellStyle
		}).
		Render()
}

func seatLine(s ipc.SeatStatus) string {
	caps := strings.Join(s.Capabilities, ", ")
	if caps == "" {
		caps = "no devices"
	}
	line := FormatListItem(s.Name, s.Keyboard != "") + " " + SubtleStyle.Render("["+caps+"]")
	if s.Keyboard != "" {
		line += "\n    keyboard focus: " + s.Keyboard
	}
	if s.Pointer != "" {
		line += "\n    pointer focus:  " + s.Pointer
	}
	return line
}
