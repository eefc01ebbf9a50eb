package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hylla/todoembed/internal/domain"
)

// metadataSnapshot is one wholesale copy of the remote lookup tables.
// The slices keep remote listing order for first-match name resolution.
type metadataSnapshot struct {
	projects     map[int64]domain.Project
	sections     map[int64]domain.Section
	labels       map[int64]domain.Label
	projectOrder []domain.Project
	sectionOrder []domain.Section
	labelOrder   []domain.Label
	refreshedAt  time.Time
}

// emptySnapshot returns a snapshot with no entries.
func emptySnapshot() *metadataSnapshot {
	return &metadataSnapshot{
		projects: map[int64]domain.Project{},
		sections: map[int64]domain.Section{},
		labels:   map[int64]domain.Label{},
	}
}

// MetadataCache holds session-scoped project, section and label lookups keyed by remote id.
// Refreshes replace the whole snapshot; concurrent refreshes are last-writer-wins.
type MetadataCache struct {
	source MetadataSource
	clock  Clock

	mu       sync.RWMutex
	snap     *metadataSnapshot
	refreshN int
}

// MetadataStats summarizes the cache for diagnostics.
type MetadataStats struct {
	Projects    int       `json:"projects"`
	Sections    int       `json:"sections"`
	Labels      int       `json:"labels"`
	Refreshes   int       `json:"refreshes"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
}

// NewMetadataCache builds an empty cache over source.
func NewMetadataCache(source MetadataSource, clock Clock) *MetadataCache {
	if clock == nil {
		clock = time.Now
	}
	return &MetadataCache{
		source: source,
		clock:  clock,
		snap:   emptySnapshot(),
	}
}

// Refresh re-fetches all projects, labels and sections and swaps them in wholesale.
// The previous snapshot is kept when any fetch fails.
func (c *MetadataCache) Refresh(ctx context.Context) error {
	if c == nil || c.source == nil {
		return ErrNoMetadataSource
	}
	projects, err := c.source.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	labels, err := c.source.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	sections, err := c.source.ListSections(ctx)
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}

	next := emptySnapshot()
	for _, p := range projects {
		next.projects[p.ID] = p
	}
	for _, s := range sections {
		next.sections[s.ID] = s
	}
	for _, l := range labels {
		next.labels[l.ID] = l
	}
	next.projectOrder = append([]domain.Project(nil), projects...)
	next.sectionOrder = append([]domain.Section(nil), sections...)
	next.labelOrder = append([]domain.Label(nil), labels...)
	next.refreshedAt = c.clock().UTC()

	c.mu.Lock()
	c.snap = next
	c.refreshN++
	c.mu.Unlock()
	return nil
}

// snapshot returns the current snapshot for read-only use.
func (c *MetadataCache) snapshot() *metadataSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Project returns the project with id.
func (c *MetadataCache) Project(id int64) (domain.Project, bool) {
	p, ok := c.snapshot().projects[id]
	return p, ok
}

// Section returns the section with id.
func (c *MetadataCache) Section(id int64) (domain.Section, bool) {
	s, ok := c.snapshot().sections[id]
	return s, ok
}

// Label returns the label with id.
func (c *MetadataCache) Label(id int64) (domain.Label, bool) {
	l, ok := c.snapshot().labels[id]
	return l, ok
}

// ProjectByName returns the first project named name, in remote listing order.
func (c *MetadataCache) ProjectByName(name string) (domain.Project, bool) {
	for _, p := range c.snapshot().projectOrder {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Project{}, false
}

// SectionByName returns the first section named name, in remote listing order.
func (c *MetadataCache) SectionByName(name string) (domain.Section, bool) {
	for _, s := range c.snapshot().sectionOrder {
		if s.Name == name {
			return s, true
		}
	}
	return domain.Section{}, false
}

// LabelByName returns the first label named name, in remote listing order.
func (c *MetadataCache) LabelByName(name string) (domain.Label, bool) {
	for _, l := range c.snapshot().labelOrder {
		if l.Name == name {
			return l, true
		}
	}
	return domain.Label{}, false
}

// Projects returns the cached projects in remote listing order.
func (c *MetadataCache) Projects() []domain.Project {
	return append([]domain.Project(nil), c.snapshot().projectOrder...)
}

// Sections returns the cached sections in remote listing order.
func (c *MetadataCache) Sections() []domain.Section {
	return append([]domain.Section(nil), c.snapshot().sectionOrder...)
}

// Labels returns the cached labels in remote listing order.
func (c *MetadataCache) Labels() []domain.Label {
	return append([]domain.Label(nil), c.snapshot().labelOrder...)
}

// MissingIDs lists ids referenced by tasks that the cache does not know.
type MissingIDs struct {
	Projects []int64
	Sections []int64
	Labels   []int64
}

// Any reports whether at least one id is missing.
func (m MissingIDs) Any() bool {
	return len(m.Projects) > 0 || len(m.Sections) > 0 || len(m.Labels) > 0
}

// Missing collects the distinct project, section and label ids referenced by tasks
// and absent from the cache. Section id 0 means "no section" and is skipped.
func (c *MetadataCache) Missing(tasks []domain.Task) MissingIDs {
	snap := c.snapshot()
	var out MissingIDs
	seenProjects := map[int64]struct{}{}
	seenSections := map[int64]struct{}{}
	seenLabels := map[int64]struct{}{}
	for _, task := range tasks {
		if _, ok := snap.projects[task.ProjectID]; !ok {
			if _, seen := seenProjects[task.ProjectID]; !seen {
				seenProjects[task.ProjectID] = struct{}{}
				out.Projects = append(out.Projects, task.ProjectID)
			}
		}
		if task.SectionID != domain.NoSection {
			if _, ok := snap.sections[task.SectionID]; !ok {
				if _, seen := seenSections[task.SectionID]; !seen {
					seenSections[task.SectionID] = struct{}{}
					out.Sections = append(out.Sections, task.SectionID)
				}
			}
		}
		for _, labelID := range task.LabelIDs {
			if _, ok := snap.labels[labelID]; ok {
				continue
			}
			if _, seen := seenLabels[labelID]; seen {
				continue
			}
			seenLabels[labelID] = struct{}{}
			out.Labels = append(out.Labels, labelID)
		}
	}
	return out
}

// Stats returns entry counts and refresh bookkeeping.
func (c *MetadataCache) Stats() MetadataStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return MetadataStats{
		Projects:    len(c.snap.projects),
		Sections:    len(c.snap.sections),
		Labels:      len(c.snap.labels),
		Refreshes:   c.refreshN,
		RefreshedAt: c.snap.refreshedAt,
	}
}
