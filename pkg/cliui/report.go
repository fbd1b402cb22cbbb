package cliui

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/narrative"
	"github.com/papercomputeco/tracelens/pkg/utils"
)

const nameWidth = 32

// RenderReport renders one table row per observation in temporal order.
func RenderReport(r *analysis.Result) string {
	rows := r.Report()

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(DimStyle).
		Headers("ID", "KIND", "NAME", "PARENT", "DEPTH", "RULE", "LEAK", "GROUNDEDNESS")

	for _, row := range rows {
		label := ""
		if row.Groundedness != nil {
			label = string(row.Groundedness.Label)
		}
		t.Row(
			row.ID,
			row.Kind,
			utils.Truncate(row.Name, nameWidth),
			row.ParentID,
			strconv.Itoa(row.Depth),
			row.Rule,
			row.Leak.Level.String(),
			label,
		)
	}

	return t.String()
}

// RenderSummary renders the one-paragraph verdict for a trace.
func RenderSummary(r *analysis.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", KeyStyle.Render("Trace:"), ValueStyle.Render(r.TraceID))
	fmt.Fprintf(&b, "%s %d\n", KeyStyle.Render("Observations:"), len(r.Order))
	fmt.Fprintf(&b, "%s %s\n", KeyStyle.Render("Max leak:"), LevelBadge(r.MaxLeak()))

	if leaking := r.Leaking(); len(leaking) > 0 {
		fmt.Fprintf(&b, "%s %s\n", KeyStyle.Render("Leaking:"), strings.Join(leaking, ", "))
	}
	if contradicted := r.Contradicted(); len(contradicted) > 0 {
		fmt.Fprintf(&b, "%s %s\n", KeyStyle.Render("Contradicted:"), strings.Join(contradicted, ", "))
	}
	if r.RootCauseObservationID != "" {
		fmt.Fprintf(&b, "%s %s\n", KeyStyle.Render("Root cause:"), r.RootCauseObservationID)
	}
	if codes := r.Failures.Codes(); len(codes) > 0 {
		names := make([]string, len(codes))
		for i, c := range codes {
			names[i] = string(c)
		}
		fmt.Fprintf(&b, "%s %s\n", KeyStyle.Render("Failures:"), strings.Join(names, ", "))
	}

	return b.String()
}

// NarrativeMarkdown formats a narrative as markdown for RenderMarkdown.
func NarrativeMarkdown(n narrative.Narrative) string {
	var b strings.Builder

	b.WriteString("## Question\n\n")
	b.WriteString(orNone(n.UserQuestion))
	b.WriteString("\n\n")

	if len(n.PlanningTools) > 0 {
		b.WriteString("## Planned tools\n\n")
		for _, name := range n.PlanningTools {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Tools executed\n\n")
	if len(n.ToolsExecuted) == 0 {
		b.WriteString("_none_\n\n")
	}
	for _, tool := range n.ToolsExecuted {
		fmt.Fprintf(&b, "- **%s**: %s\n", tool.Name, tool.Summary)
	}
	if len(n.ToolsExecuted) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Final answer\n\n")
	b.WriteString(orNone(n.FinalAnswer))
	b.WriteString("\n")

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "_none_"
	}
	return s
}
