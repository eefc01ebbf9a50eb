package app

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hylla/todoembed/internal/domain"
)

// QueryKind selects the remote task listing parameter.
type QueryKind string

// QueryFilter and related constants define the supported task listings.
const (
	QueryFilter  QueryKind = "filter"
	QueryProject QueryKind = "project"
	QuerySection QueryKind = "section"
	QueryLabel   QueryKind = "label"
)

// Query is one remote task listing request.
type Query struct {
	Kind   QueryKind `json:"kind"`
	Filter string    `json:"filter,omitempty"`
	ID     int64     `json:"id,omitempty"`
}

// Values returns the listing parameters. Encoding is left to the caller.
func (q Query) Values() url.Values {
	values := url.Values{}
	switch q.Kind {
	case QueryFilter:
		values.Set("filter", q.Filter)
	case QueryProject:
		values.Set("project_id", strconv.FormatInt(q.ID, 10))
	case QuerySection:
		values.Set("section_id", strconv.FormatInt(q.ID, 10))
	case QueryLabel:
		values.Set("label_id", strconv.FormatInt(q.ID, 10))
	}
	return values
}

// String renders the query as it appears on the wire.
func (q Query) String() string {
	return q.Values().Encode()
}

// refreshFunc re-fetches metadata on a lookup miss. reason is logged.
type refreshFunc func(ctx context.Context, reason string) error

// QueryBuilder resolves a validated config into a remote task query.
type QueryBuilder struct {
	cache   *MetadataCache
	refresh refreshFunc
}

// NewQueryBuilder constructs a builder over cache. refresh defaults to cache.Refresh.
func NewQueryBuilder(cache *MetadataCache, refresh refreshFunc) *QueryBuilder {
	if refresh == nil {
		refresh = func(ctx context.Context, _ string) error {
			return cache.Refresh(ctx)
		}
	}
	return &QueryBuilder{cache: cache, refresh: refresh}
}

// lookupState tracks whether this build already refreshed the cache.
type lookupState struct {
	refreshed bool
}

// Build resolves cfg into a query. Name misses trigger at most one cache refresh per build.
func (b *QueryBuilder) Build(ctx context.Context, cfg domain.ViewConfig) (Query, error) {
	query := cfg.Settings.Query
	state := &lookupState{}
	switch cfg.Mode {
	case domain.ModeFilter:
		return Query{Kind: QueryFilter, Filter: query}, nil
	case domain.ModeLabel:
		label, found, err := resolve(ctx, b, state, "label_lookup", func() (domain.Label, bool) {
			return b.cache.LabelByName(query)
		})
		if err != nil {
			return Query{}, err
		}
		if !found {
			return Query{}, domain.NewError(domain.KindInvalidLabel, cfg.Mode, fmt.Sprintf("label %q", query), nil)
		}
		return Query{Kind: QueryLabel, ID: label.ID}, nil
	case domain.ModeProject:
		return b.buildProject(ctx, state, cfg.Mode, query)
	default:
		return Query{}, domain.NewError(domain.KindInvalidMode, "", fmt.Sprintf("mode %q", cfg.Mode), nil)
	}
}

// buildProject resolves "project" or "project/section" paths.
func (b *QueryBuilder) buildProject(ctx context.Context, state *lookupState, mode domain.Mode, path string) (Query, error) {
	projectName, sectionName, hasSection := strings.Cut(path, "/")
	project, found, err := resolve(ctx, b, state, "project_lookup", func() (domain.Project, bool) {
		return b.cache.ProjectByName(projectName)
	})
	if err != nil {
		return Query{}, err
	}
	if !found {
		return Query{}, domain.NewError(domain.KindInvalidProject, mode, fmt.Sprintf("project %q", projectName), nil)
	}
	if !hasSection || sectionName == "" {
		return Query{Kind: QueryProject, ID: project.ID}, nil
	}

	section, found, err := resolve(ctx, b, state, "section_lookup", func() (domain.Section, bool) {
		return b.sectionByName(project.ID, sectionName)
	})
	if err != nil {
		return Query{}, err
	}
	if !found {
		return Query{}, domain.NewError(domain.KindInvalidSection, mode, fmt.Sprintf("section %q", sectionName), nil)
	}
	if section.ProjectID != project.ID {
		return Query{}, domain.NewError(
			domain.KindInvalidSectionForProject,
			mode,
			fmt.Sprintf("section %q belongs to project %d, not %q", sectionName, section.ProjectID, projectName),
			nil,
		)
	}
	return Query{Kind: QuerySection, ID: section.ID}, nil
}

// sectionByName prefers a same-named section of projectID, then the first listed match.
func (b *QueryBuilder) sectionByName(projectID int64, name string) (domain.Section, bool) {
	for _, section := range b.cache.Sections() {
		if section.ProjectID == projectID && section.Name == name {
			return section, true
		}
	}
	return b.cache.SectionByName(name)
}

// resolve runs lookup, refreshing once on a miss when this build has not refreshed yet.
func resolve[T any](ctx context.Context, b *QueryBuilder, state *lookupState, reason string, lookup func() (T, bool)) (T, bool, error) {
	if value, ok := lookup(); ok {
		return value, true, nil
	}
	if state.refreshed {
		var zero T
		return zero, false, nil
	}
	state.refreshed = true
	if err := b.refresh(ctx, reason); err != nil {
		var zero T
		return zero, false, remoteErrorFrom(err)
	}
	value, ok := lookup()
	return value, ok, nil
}

// remoteErrorFrom wraps err as a RemoteError unless it already carries an error kind.
func remoteErrorFrom(err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.NewError(domain.KindRemote, "", "", err)
}
