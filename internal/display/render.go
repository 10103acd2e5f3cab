package display

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const ansiReset = "\x1b[0m"

// markdownRenderer renders agent messages with glamour, rebuilding the
// renderer only when the wrap width changes.
type markdownRenderer struct {
	style string
	width int
	r     *glamour.TermRenderer
}

func (m *markdownRenderer) render(text string, width int) (string, bool) {
	if width <= 10 || strings.TrimSpace(m.style) == "" {
		return "", false
	}
	if m.r == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", false
		}
		m.r, m.width = r, width
	}
	out, err := m.r.Render(text)
	if err != nil {
		return "", false
	}
	return strings.Trim(out, "\n"), true
}

func wrapPrefixedLines(prefix string, style lipgloss.Style, text string, width int) []string {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	prefixWidth := runewidth.StringWidth(prefix)
	wrapped := wrapText(text, max(10, width-prefixWidth))

	lines := strings.Split(wrapped, "\n")
	out := make([]string, 0, len(lines))
	indent := strings.Repeat(" ", prefixWidth)
	for i, line := range lines {
		if i == 0 {
			out = append(out, style.Render(prefix+line))
			continue
		}
		out = append(out, style.Render(indent+line))
	}
	return out
}

func indentLines(block, indent string) []string {
	lines := strings.Split(block, "\n")
	for i := range lines {
		lines[i] = indent + lines[i]
	}
	return lines
}

func wrapText(text string, width int) string {
	if width <= 10 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

// truncateANSI cuts s to width visible cells, keeping escape sequences
// intact and marking the cut with an ellipsis.
func truncateANSI(s string, width int) string {
	if width <= 0 {
		return s
	}
	if width == 1 {
		return "…"
	}
	if lipgloss.Width(s) <= width {
		return s
	}

	maxVisible := width - 1
	var b strings.Builder
	b.Grow(len(s) + 4)
	visible := 0
	sawEsc := false
	for i := 0; i < len(s); {
		if s[i] == 0x1b {
			sawEsc = true
			seq, n := readANSISequence(s[i:])
			if n > 0 {
				b.WriteString(seq)
				i += n
				continue
			}
			i++
			continue
		}
		r, n := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && n == 1 {
			i++
			continue
		}
		rw := max(0, runewidth.RuneWidth(r))
		if visible+rw > maxVisible {
			break
		}
		b.WriteRune(r)
		visible += rw
		i += n
	}
	b.WriteRune('…')
	if sawEsc {
		b.WriteString(ansiReset)
	}
	return b.String()
}

func readANSISequence(s string) (seq string, n int) {
	if len(s) < 2 || s[0] != 0x1b {
		return "", 0
	}
	switch s[1] {
	case '[':
		// CSI ends at the first byte in @-~.
		for i := 2; i < len(s); i++ {
			if s[i] >= 0x40 && s[i] <= 0x7e {
				return s[:i+1], i + 1
			}
		}
		return s, len(s)
	case ']':
		// OSC ends at BEL or ST.
		for i := 2; i < len(s); i++ {
			if s[i] == 0x07 {
				return s[:i+1], i + 1
			}
			if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '\\' {
				return s[:i+2], i + 2
			}
		}
		return s, len(s)
	default:
		return s[:2], 2
	}
}

func safeOneLine(s string, maxChars int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxChars > 0 && utf8.RuneCountInString(s) > maxChars {
		return string([]rune(s)[:maxChars]) + "…"
	}
	return s
}

func clamp(lo, v, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
