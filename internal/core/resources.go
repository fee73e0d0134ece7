package core

// Resource is one group of support material shown next to the chat.
type Resource struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

var resourceTable = []Resource{
	{"Crisis Hotlines", []string{
		"National Suicide Prevention Lifeline: 1-800-273-TALK (8255)",
		"Crisis Text Line: Text HOME to 741741",
	}},
	{"Self-Help Tools", []string{
		"MindShift CBT App",
		"Calm Meditation App",
	}},
	{"Educational Content", []string{
		"Understanding Anxiety (PDF Guide)",
		"Building Resilience Workshop Recording",
	}},
}

// Resources returns a copy of the static resource table, crisis lines first.
func Resources() []Resource {
	out := make([]Resource, len(resourceTable))
	for i, r := range resourceTable {
		out[i] = Resource{Category: r.Category, Items: append([]string(nil), r.Items...)}
	}
	return out
}
