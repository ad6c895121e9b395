package app

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/zjrosen/quickscale/internal/keys"
	"github.com/zjrosen/quickscale/internal/log"
)

// noMarginStyle removes glamour's document margins.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

var helpGroups = []string{"Panels", "Scaling", "General"}

// helpMarkdown lists every binding as a markdown table per group.
func helpMarkdown(km keys.KeyMap) string {
	var b strings.Builder
	b.WriteString("# quickscale\n\n")
	b.WriteString("Each panel's UIScale follows the terminal size relative to the reference resolution.\n\n")
	for i, group := range km.FullHelp() {
		name := "Keys"
		if i < len(helpGroups) {
			name = helpGroups[i]
		}
		b.WriteString("## " + name + "\n\n| key | action |\n|---|---|\n")
		for _, binding := range group {
			h := binding.Help()
			b.WriteString("| `" + h.Key + "` | " + h.Desc + " |\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderHelp renders the help markdown at width. A fixed dark style is used
// so glamour does not query the terminal for its background color.
func renderHelp(km keys.KeyMap, width int) string {
	md := helpMarkdown(km)
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		log.ErrorErr(log.CatUI, "creating help renderer", err)
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		log.ErrorErr(log.CatUI, "rendering help", err)
		return md
	}
	return strings.TrimRight(out, "\n")
}
