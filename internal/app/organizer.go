package app

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/todoembed/internal/domain"
)

// Organize groups, sorts and nests tasks for cfg and joins every node with cached metadata.
// Parent/child nesting applies in project mode only; elsewhere every task is top-level.
// Subtasks whose parent is not part of tasks are not shown.
func Organize(tasks []domain.Task, cfg domain.ViewConfig, cache *MetadataCache, now time.Time, loc *time.Location) (domain.OrganizedView, error) {
	if loc == nil {
		loc = time.Local
	}
	o := organizer{
		settings: cfg.Settings,
		cache:    cache,
		loc:      loc,
		today:    domain.StartOfDay(now, loc),
	}

	topLevel := tasks
	if cfg.Mode == domain.ModeProject {
		topLevel = make([]domain.Task, 0, len(tasks))
		o.children = map[int64][]domain.Task{}
		for _, task := range tasks {
			if task.HasParent() {
				o.children[task.ParentRef()] = append(o.children[task.ParentRef()], task)
				continue
			}
			topLevel = append(topLevel, task)
		}
	}

	buckets, err := o.group(topLevel)
	if err != nil {
		return domain.OrganizedView{}, err
	}

	view := domain.OrganizedView{
		Mode:    cfg.Mode,
		GroupBy: cfg.Settings.GroupBy,
		Groups:  make([]domain.Group, 0, len(buckets)),
		Empty:   len(tasks) == 0,
	}
	for _, bucket := range buckets {
		o.sort(bucket.tasks)
		nodes, err := o.nodes(bucket.tasks, map[int64]struct{}{})
		if err != nil {
			return domain.OrganizedView{}, err
		}
		view.Groups = append(view.Groups, domain.Group{
			Label:     bucket.label,
			Ungrouped: bucket.ungrouped,
			Tasks:     nodes,
		})
	}
	return view, nil
}

// organizer carries per-call state for Organize.
type organizer struct {
	settings domain.ViewSettings
	cache    *MetadataCache
	loc      *time.Location
	today    time.Time
	children map[int64][]domain.Task
}

// bucket is one group of top-level tasks before joining.
type bucket struct {
	label     string
	ungrouped bool
	tasks     []domain.Task
}

// group partitions tasks according to the configured groupBy.
func (o organizer) group(tasks []domain.Task) ([]bucket, error) {
	switch o.settings.GroupBy {
	case domain.GroupByDate:
		return o.fixedBuckets(tasks, domain.DateGroups(), o.dateBucket), nil
	case domain.GroupByPriority:
		return o.fixedBuckets(tasks, domain.PriorityGroups(), func(task domain.Task) string {
			return domain.PriorityBucket(task.Priority)
		}), nil
	case domain.GroupBySection:
		return insertionBuckets(tasks, o.sectionBucket)
	case domain.GroupByProject:
		return insertionBuckets(tasks, o.projectBucket)
	default:
		return []bucket{{ungrouped: true, tasks: slices.Clone(tasks)}}, nil
	}
}

// fixedBuckets emits every label in order, even when empty.
func (o organizer) fixedBuckets(tasks []domain.Task, labels []string, key func(domain.Task) string) []bucket {
	out := make([]bucket, len(labels))
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		out[i] = bucket{label: label, tasks: []domain.Task{}}
		index[label] = i
	}
	for _, task := range tasks {
		i := index[key(task)]
		out[i].tasks = append(out[i].tasks, task)
	}
	return out
}

// insertionBuckets emits one bucket per distinct key in first-encounter order.
func insertionBuckets(tasks []domain.Task, key func(domain.Task) (string, error)) ([]bucket, error) {
	out := []bucket{}
	index := map[string]int{}
	for _, task := range tasks {
		label, err := key(task)
		if err != nil {
			return nil, err
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, bucket{label: label})
		}
		out[i].tasks = append(out[i].tasks, task)
	}
	return out, nil
}

// dateBucket classifies a task by its due day relative to today.
func (o organizer) dateBucket(task domain.Task) string {
	if task.Due == nil {
		return domain.GroupNoDate
	}
	day, ok := task.Due.Day(o.loc)
	if !ok {
		return domain.GroupNoDate
	}
	switch {
	case day.Before(o.today):
		return domain.GroupOverdue
	case day.Equal(o.today):
		return domain.GroupToday
	default:
		return domain.GroupUpcoming
	}
}

func (o organizer) sectionBucket(task domain.Task) (string, error) {
	if task.SectionID == domain.NoSection {
		return domain.GroupNoSection, nil
	}
	section, ok := o.cache.Section(task.SectionID)
	if !ok {
		return "", missingMetadata("section", task.SectionID, task.ID)
	}
	return section.Name, nil
}

func (o organizer) projectBucket(task domain.Task) (string, error) {
	project, ok := o.cache.Project(task.ProjectID)
	if !ok {
		return "", missingMetadata("project", task.ProjectID, task.ID)
	}
	return project.Name, nil
}

// sort orders tasks in place with a stable comparator.
func (o organizer) sort(tasks []domain.Task) {
	slices.SortStableFunc(tasks, o.compare)
}

// compare implements the configured sortBy and sortOrder.
// Priority ascending puts the numerically largest priority first.
// Undated tasks sort after dated ones in both directions.
func (o organizer) compare(a, b domain.Task) int {
	desc := o.settings.SortOrder == domain.SortDesc
	var result int
	switch o.settings.SortBy {
	case domain.SortByPriority:
		result = cmp.Compare(b.Priority, a.Priority)
	case domain.SortByContent:
		result = strings.Compare(a.Content, b.Content)
	case domain.SortByDate:
		at, aDated := o.dueTime(a)
		bt, bDated := o.dueTime(b)
		switch {
		case !aDated && !bDated:
			return 0
		case !aDated:
			return 1
		case !bDated:
			return -1
		}
		result = at.Compare(bt)
	default:
		result = cmp.Compare(a.Order, b.Order)
	}
	if desc {
		return -result
	}
	return result
}

// dueTime returns the date sort key and whether task has a usable due date.
func (o organizer) dueTime(task domain.Task) (time.Time, bool) {
	if task.Due == nil {
		return time.Time{}, false
	}
	return task.Due.Time(o.loc)
}

// nodes joins tasks with metadata and attaches their sorted children.
// path holds the ancestors of tasks and stops a malformed parent chain.
func (o organizer) nodes(tasks []domain.Task, path map[int64]struct{}) ([]domain.Node, error) {
	out := make([]domain.Node, 0, len(tasks))
	for _, task := range tasks {
		if _, seen := path[task.ID]; seen {
			return nil, domain.NewError(domain.KindInconsistentMetadata, "", fmt.Sprintf("task %d is its own ancestor", task.ID), nil)
		}
		node, err := o.join(task)
		if err != nil {
			return nil, err
		}
		if kids := o.children[task.ID]; len(kids) > 0 {
			kids = slices.Clone(kids)
			o.sort(kids)
			path[task.ID] = struct{}{}
			node.Children, err = o.nodes(kids, path)
			delete(path, task.ID)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, node)
	}
	return out, nil
}

// join resolves the project, section and labels referenced by task.
func (o organizer) join(task domain.Task) (domain.Node, error) {
	project, ok := o.cache.Project(task.ProjectID)
	if !ok {
		return domain.Node{}, missingMetadata("project", task.ProjectID, task.ID)
	}
	node := domain.Node{
		Task:    task,
		Project: &project,
		Labels:  make([]domain.Label, 0, len(task.LabelIDs)),
	}
	if task.SectionID != domain.NoSection {
		section, ok := o.cache.Section(task.SectionID)
		if !ok {
			return domain.Node{}, missingMetadata("section", task.SectionID, task.ID)
		}
		node.Section = &section
	}
	for _, labelID := range task.LabelIDs {
		label, ok := o.cache.Label(labelID)
		if !ok {
			return domain.Node{}, missingMetadata("label", labelID, task.ID)
		}
		node.Labels = append(node.Labels, label)
	}
	return node, nil
}

func missingMetadata(kind string, id, taskID int64) error {
	return domain.NewError(domain.KindInconsistentMetadata, "", fmt.Sprintf("%s %d referenced by task %d is unknown", kind, id, taskID), nil)
}
