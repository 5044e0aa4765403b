package routing

import "github.com/aretw0/relay/pkg/domain"

// RouteInfo is a printable summary of one active route.
type RouteInfo struct {
	Name  string       `json:"name"`
	Kind  RouteKind    `json:"kind"`
	Match []string     `json:"match"`
	Flags domain.Flags `json:"flags"`
}

// Describe summarizes the active routes, grouped by kind in resolution order.
func (t *Table) Describe() []RouteInfo {
	var out []RouteInfo
	for _, r := range t.Conversations() {
		var match []string
		if r.TriggerCommand != "" {
			match = append(match, "/"+r.TriggerCommand)
		}
		if r.EntryPredicate != nil {
			match = append(match, "entry predicate")
		}
		out = append(out, RouteInfo{Name: r.Name, Kind: KindConversation, Match: match, Flags: r.Flags})
	}
	for _, r := range t.Commands() {
		match := make([]string, len(r.Triggers))
		for i, tr := range r.Triggers {
			match[i] = "/" + tr
		}
		out = append(out, RouteInfo{Name: r.Name, Kind: KindCommand, Match: match, Flags: r.Flags})
	}
	for _, r := range t.Callbacks() {
		out = append(out, RouteInfo{Name: r.Name, Kind: KindCallback, Match: []string{r.Prefix}, Flags: r.Flags})
	}
	for _, r := range t.TextTriggers() {
		out = append(out, RouteInfo{Name: r.Name, Kind: KindText, Match: []string{r.Pattern}, Flags: r.Flags})
	}
	return out
}
