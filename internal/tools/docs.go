package tools

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Documentation renders every registered tool, sorted by id, with its
// parameters taken from the input schema. It is meant to be appended to a
// model's system prompt.
func (r *Registry) Documentation() string {
	var b strings.Builder
	b.WriteString("Available tools:\n\n")
	for i, md := range r.List() {
		fmt.Fprintf(&b, "%d. %q: %s\n", i+1, md.ID, md.Description)
		b.WriteString("   Parameters: {\n")
		var s inputSchema
		if len(md.InputSchema) > 0 {
			_ = json.Unmarshal(md.InputSchema, &s)
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop := s.Properties[name]
			typ := prop.Type
			if typ == "" {
				typ = "any"
			}
			fmt.Fprintf(&b, "     %q: %q", name, typ)
			switch {
			case !slices.Contains(s.Required, name):
				fmt.Fprintf(&b, ", // Optional: %s", prop.Description)
			case prop.Description != "":
				fmt.Fprintf(&b, ", // %s", prop.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("   }\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
