package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/service"
)

// Theme holds the color scheme for action log output.
type Theme struct {
	Created lipgloss.Color
	Updated lipgloss.Color
	Matched lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Created: lipgloss.Color("#00D787"), // green
	Updated: lipgloss.Color("#5FAFD7"), // light blue
	Matched: lipgloss.Color("#AF87FF"), // purple
	Warning: lipgloss.Color("#FFAF00"), // amber
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// printer writes results, styled when out is a terminal.
type printer struct {
	out   io.Writer
	theme Theme
	color bool
}

func newPrinter(out io.Writer) *printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
	}
	return &printer{out: out, theme: defaultTheme, color: color}
}

func (p *printer) style(c lipgloss.Color, bold bool) lipgloss.Style {
	if !p.color {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(c).Bold(bold)
}

func (p *printer) marker(kind models.ActionKind) (string, lipgloss.Style) {
	switch kind {
	case models.ActionCreated:
		return "+", p.style(p.theme.Created, false)
	case models.ActionUpdated:
		return "~", p.style(p.theme.Updated, false)
	case models.ActionMatched:
		return "=", p.style(p.theme.Matched, false)
	case models.ActionWarning:
		return "!", p.style(p.theme.Warning, false)
	case models.ActionFailed:
		return "x", p.style(p.theme.Error, true)
	default:
		return "-", p.style(p.theme.Hint, false)
	}
}

// actionLog prints one line per entry.
func (p *printer) actionLog(log models.ActionLog) {
	for _, e := range log {
		mark, st := p.marker(e.Kind)
		fmt.Fprintln(p.out, st.Render(mark+" "+e.Message))
	}
}

// result prints a run's action log followed by its outcome.
func (p *printer) result(res *service.Result) {
	p.actionLog(res.ActionLog)
	if res.Success {
		if res.Summary != "" {
			fmt.Fprintln(p.out, p.style(p.theme.Created, true).Render("✓ "+res.Summary))
		}
		if res.URL != "" {
			fmt.Fprintln(p.out, p.style(p.theme.Hint, false).Render("  "+res.URL))
		}
		return
	}
	fmt.Fprintln(p.out, p.style(p.theme.Error, true).Render("✗ "+res.Error))
	hint := p.style(p.theme.Hint, false)
	if p.color {
		hint = hint.Italic(true)
	}
	fmt.Fprintln(p.out, hint.Render("Input was: "+res.Input))
}

// stats prints pipeline statistics.
func (p *printer) stats(s metrics.Snapshot) {
	fmt.Fprintf(p.out, "Pipeline Statistics\n")
	fmt.Fprintf(p.out, "═══════════════════════════════════════\n")
	fmt.Fprintf(p.out, "Runs: %d (%d failed)\n", s.Runs, s.FailedRuns)

	ops := []struct {
		label  string
		op     *metrics.OperationSnapshot
		tokens bool
	}{
		{"LLM Classify", s.LLMClassify, true},
		{"LLM Extract", s.LLMExtract, true},
		{"LLM Match", s.LLMMatch, true},
		{"Store Query", s.StoreQuery, false},
		{"Store Create", s.StoreCreate, false},
		{"Store Update", s.StoreUpdate, false},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		fmt.Fprintf(p.out, "\n%s:\n", o.label)
		p.opStats(o.op)
		if o.tokens {
			p.tokenStats(o.op)
		}
	}

	if len(s.Tiers) > 0 {
		fmt.Fprintf(p.out, "\nMatch tiers:\n")
		for _, tier := range []models.MatchTier{
			models.TierExact, models.TierNormalized, models.TierFuzzy, models.TierLexical,
			models.TierSemantic, models.TierCreated, models.TierUnresolved,
		} {
			if n := s.Tiers[string(tier)]; n > 0 {
				fmt.Fprintf(p.out, "  %-12s %d\n", tier, n)
			}
		}
	}
}

func (p *printer) opStats(op *metrics.OperationSnapshot) {
	fmt.Fprintf(p.out, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(p.out, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

func (p *printer) tokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(p.out, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(p.out, ", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Fprintln(p.out)

	fmt.Fprintf(p.out, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(p.out, ", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Fprintln(p.out)
}

// table prints rows with columns padded to the widest cell.
func (p *printer) table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
				continue
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], c)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(p.out, p.style(p.theme.Hint, true).Render(line(header)))
	for _, r := range rows {
		fmt.Fprintln(p.out, line(r))
	}
}
