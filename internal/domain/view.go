package domain

// Fixed bucket labels emitted by date grouping, in display order.
const (
	GroupOverdue  = "Overdue"
	GroupToday    = "Today"
	GroupUpcoming = "Upcoming"
	GroupNoDate   = "No Date"
)

// GroupNoSection labels tasks without a section when grouping by section.
const GroupNoSection = "No Section"

// DateGroups returns the date bucket labels in display order.
func DateGroups() []string {
	return []string{GroupOverdue, GroupToday, GroupUpcoming, GroupNoDate}
}

// PriorityGroups returns the priority bucket labels in display order.
func PriorityGroups() []string {
	return []string{"P1", "P2", "P3", "P4"}
}

// Node is one task joined with its metadata and sorted children.
type Node struct {
	Task     Task     `json:"task"`
	Project  *Project `json:"project,omitempty"`
	Section  *Section `json:"section,omitempty"`
	Labels   []Label  `json:"labels"`
	Children []Node   `json:"children,omitempty"`
}

// Group is one labeled bucket of top-level nodes, or the single ungrouped bucket.
type Group struct {
	Label     string `json:"label,omitempty"`
	Ungrouped bool   `json:"ungrouped,omitempty"`
	Tasks     []Node `json:"tasks"`
}

// Visible reports whether a renderer should draw the group.
// The ungrouped bucket is always drawn; labeled buckets only when non-empty.
func (g Group) Visible() bool {
	return g.Ungrouped || len(g.Tasks) > 0
}

// OrganizedView is the grouped, sorted and nested result of one render invocation.
type OrganizedView struct {
	Mode    Mode    `json:"mode"`
	GroupBy GroupBy `json:"group_by"`
	Groups  []Group `json:"groups"`
	Empty   bool    `json:"empty"`
}

// TaskCount returns the number of nodes in the view, children included.
func (v OrganizedView) TaskCount() int {
	total := 0
	for _, group := range v.Groups {
		total += countNodes(group.Tasks)
	}
	return total
}

// FindNode returns the node with id, searching children depth-first.
func (v OrganizedView) FindNode(id int64) (Node, bool) {
	for _, group := range v.Groups {
		if node, ok := findNode(group.Tasks, id); ok {
			return node, true
		}
	}
	return Node{}, false
}

// SetCompleted updates the completion flag of every node with id and reports whether one was found.
func (v *OrganizedView) SetCompleted(id int64, completed bool) bool {
	found := false
	for gi := range v.Groups {
		if setCompleted(v.Groups[gi].Tasks, id, completed) {
			found = true
		}
	}
	return found
}

func countNodes(nodes []Node) int {
	total := len(nodes)
	for _, node := range nodes {
		total += countNodes(node.Children)
	}
	return total
}

func findNode(nodes []Node, id int64) (Node, bool) {
	for _, node := range nodes {
		if node.Task.ID == id {
			return node, true
		}
		if child, ok := findNode(node.Children, id); ok {
			return child, true
		}
	}
	return Node{}, false
}

func setCompleted(nodes []Node, id int64, completed bool) bool {
	found := false
	for i := range nodes {
		if nodes[i].Task.ID == id {
			nodes[i].Task.Completed = completed
			found = true
		}
		if setCompleted(nodes[i].Children, id, completed) {
			found = true
		}
	}
	return found
}
