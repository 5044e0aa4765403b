package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/relay/pkg/domain"
)

// StateGraph is a conversation workflow seen as a graph.
type StateGraph interface {
	Name() string
	States() []string
	Exits(state string) []string
}

// GraphOverlay contains live session data to draw on the graph.
type GraphOverlay struct {
	// Sessions counts active sessions per state.
	Sessions map[string]int
	// CurrentState is highlighted, usually the state of one inspected session.
	CurrentState string
}

const endID = "__end"

// GenerateMermaid produces a Mermaid flowchart of a workflow's states.
// Start is drawn as a circle and the terminal state as a double circle;
// exits back into the same state are drawn as dotted loops.
func GenerateMermaid(g StateGraph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %%%% workflow: %s\n", g.Name())

	ends := false
	for _, state := range g.States() {
		safeID := sanitizeMermaidID(state)

		opener, closer := "[", "]"
		if state == domain.StateStart {
			opener, closer = "((", "))"
		}

		label := state
		if overlay != nil && overlay.Sessions[state] > 0 {
			label = fmt.Sprintf("%s <br/> %d active", state, overlay.Sessions[state])
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		for _, exit := range g.Exits(state) {
			switch exit {
			case domain.StateEnd:
				ends = true
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, endID)
			case state:
				fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, safeID)
			default:
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(exit))
			}
		}
	}
	if ends {
		fmt.Fprintf(&sb, "    %s(((\"end\")))\n", endID)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps labels readable on both light and dark themes.
		sb.WriteString("    classDef active fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, state := range g.States() {
			if overlay.Sessions[state] > 0 && state != overlay.CurrentState {
				fmt.Fprintf(&sb, "    class %s active;\n", sanitizeMermaidID(state))
			}
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

// OverlayFromSessions counts the sessions of one workflow per state.
func OverlayFromSessions(workflow string, sessions []*domain.Session) *GraphOverlay {
	o := &GraphOverlay{Sessions: map[string]int{}}
	for _, s := range sessions {
		if s.Workflow == workflow {
			o.Sessions[s.State]++
		}
	}
	return o
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
