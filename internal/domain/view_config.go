package domain

import "slices"

// Mode selects how the task query is built.
type Mode string

// ModeProject and related constants define the accepted query strategies.
const (
	ModeProject Mode = "project"
	ModeLabel   Mode = "label"
	ModeFilter  Mode = "filter"
)

// GroupBy names one bucketing directive.
type GroupBy string

// GroupByNone and related constants define the bucketing vocabulary.
const (
	GroupByNone     GroupBy = "none"
	GroupBySection  GroupBy = "section"
	GroupByProject  GroupBy = "project"
	GroupByPriority GroupBy = "priority"
	GroupByDate     GroupBy = "date"
)

// SortBy names one ordering directive.
type SortBy string

// SortByOrder and related constants define the ordering vocabulary.
const (
	SortByOrder    SortBy = "order"
	SortByDate     SortBy = "date"
	SortByPriority SortBy = "priority"
	SortByContent  SortBy = "content"
)

// SortOrder is the direction applied by SortBy.
type SortOrder string

// SortAsc and SortDesc are the supported directions.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

var modes = []Mode{ModeProject, ModeLabel, ModeFilter}

var groupByByMode = map[Mode][]GroupBy{
	ModeProject: {GroupBySection, GroupByPriority, GroupByDate, GroupByNone},
	ModeLabel:   {GroupByProject, GroupByPriority, GroupByDate, GroupByNone},
	ModeFilter:  {GroupByProject, GroupByPriority, GroupByDate, GroupByNone},
}

var sortBys = []SortBy{SortByOrder, SortByDate, SortByPriority, SortByContent}

// Modes returns the accepted modes in canonical order.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

// Valid reports whether m is one of the accepted modes.
func (m Mode) Valid() bool {
	return slices.Contains(modes, m)
}

// AllowedGroupBy returns the groupings accepted for mode m.
func (m Mode) AllowedGroupBy() []GroupBy {
	return append([]GroupBy(nil), groupByByMode[m]...)
}

// AllowsGroupBy reports whether g is accepted for mode m.
func (m Mode) AllowsGroupBy(g GroupBy) bool {
	return slices.Contains(groupByByMode[m], g)
}

// SortBys returns the accepted orderings.
func SortBys() []SortBy {
	return append([]SortBy(nil), sortBys...)
}

// Valid reports whether s is an accepted ordering.
func (s SortBy) Valid() bool {
	return slices.Contains(sortBys, s)
}

// Valid reports whether o is asc or desc.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// RawViewSettings is the per-mode block of an embedded config as written by the page author.
type RawViewSettings struct {
	Query     string `json:"query,omitempty"`
	GroupBy   string `json:"groupBy,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// RawViewConfig is the decoded embedded config before validation.
type RawViewConfig struct {
	Mode    string           `json:"mode"`
	Project *RawViewSettings `json:"project,omitempty"`
	Label   *RawViewSettings `json:"label,omitempty"`
	Filter  *RawViewSettings `json:"filter,omitempty"`
}

// SettingsFor returns the block selected by mode, or nil when absent.
func (c RawViewConfig) SettingsFor(mode Mode) *RawViewSettings {
	switch mode {
	case ModeProject:
		return c.Project
	case ModeLabel:
		return c.Label
	case ModeFilter:
		return c.Filter
	default:
		return nil
	}
}

// ViewSettings holds validated settings with defaults applied.
type ViewSettings struct {
	Query     string    `json:"query"`
	GroupBy   GroupBy   `json:"group_by"`
	SortBy    SortBy    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
}

// ViewConfig is a validated config: the mode plus the settings block it selects.
type ViewConfig struct {
	Mode     Mode         `json:"mode"`
	Settings ViewSettings `json:"settings"`
}
