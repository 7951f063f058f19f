package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/sketchy/pkg/domain"
)

// Status renders the workflow state as markdown. enabled reports which steps
// can be triggered now and may be nil.
func Status(state domain.State, enabled func(domain.Step) bool) string {
	var b strings.Builder
	b.WriteString("# Session\n\n")

	sess := state.Session()
	if len(sess.Images) == 0 {
		b.WriteString("_No images uploaded._\n")
	} else {
		b.WriteString("| # | Image | Type | Selected |\n|---|---|---|---|\n")
		for i, img := range sess.Images {
			mark := ""
			if img.ID == sess.SelectedID {
				mark = "✔"
			}
			name := img.DisplayName
			if img.File == nil {
				name += " (detached)"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, escape(name), img.MIMEType, mark)
		}
	}

	if a, ok := state.Analysis(); ok {
		fmt.Fprintf(&b, "\n## Analysis\n\n> %s\n", escape(a.PromptDescription))
		if state.PromptOverride() != "" {
			fmt.Fprintf(&b, "\n**Edited prompt:** %s\n", escape(state.PromptOverride()))
		}
	}

	if r, ok := state.Regeneration(); ok {
		fmt.Fprintf(&b, "\n## Regeneration\n\n`%s` from prompt: %s\n", r.ID, escape(r.Prompt))
	}

	if c, ok := state.Chain(); ok && len(c.Links) > 0 {
		b.WriteString("\n## Improvements\n\n")
		for i, l := range c.Links {
			fmt.Fprintf(&b, "%d. `%s` %s\n", i+1, l.ID, escape(l.Prompt))
		}
	}

	if enabled != nil {
		b.WriteString("\n## Next\n\n")
		for _, s := range domain.Steps {
			box := "[ ]"
			if enabled(s) {
				box = "[x]"
			}
			fmt.Fprintf(&b, "- %s %s\n", box, s)
		}
	}
	return b.String()
}

func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
