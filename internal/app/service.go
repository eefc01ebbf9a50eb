package app

import (
	"context"
	"time"

	"github.com/hylla/todoembed/internal/domain"
)

// IDGenerator returns unique identifiers for render invocations.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultSortOrder domain.SortOrder
	Location         *time.Location
}

// Service runs the render pipeline: validate, build query, fetch, check metadata, organize.
type Service struct {
	remote           RemoteTaskService
	cache            *MetadataCache
	queries          *QueryBuilder
	idGen            IDGenerator
	clock            Clock
	defaultSortOrder domain.SortOrder
	loc              *time.Location
	logger           Logger
}

// NewService constructs the pipeline. A nil remote means no token was configured:
// every operation then fails with NoToken. A nil cache is built over remote.
func NewService(remote RemoteTaskService, cache *MetadataCache, idGen IDGenerator, clock Clock, cfg ServiceConfig, logger Logger) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if !cfg.DefaultSortOrder.Valid() {
		cfg.DefaultSortOrder = domain.SortAsc
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if cache == nil {
		var source MetadataSource
		if remote != nil {
			source = remote
		}
		cache = NewMetadataCache(source, clock)
	}

	s := &Service{
		remote:           remote,
		cache:            cache,
		idGen:            idGen,
		clock:            clock,
		defaultSortOrder: cfg.DefaultSortOrder,
		loc:              cfg.Location,
		logger:           logger,
	}
	s.queries = NewQueryBuilder(cache, s.refresh)
	return s
}

// HasRemote reports whether a remote task service is configured.
func (s *Service) HasRemote() bool {
	return s.remote != nil
}

// Cache returns the metadata cache shared by every render.
func (s *Service) Cache() *MetadataCache {
	return s.cache
}

// Location returns the time zone used for date grouping.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Initialize performs the startup metadata refresh.
func (s *Service) Initialize(ctx context.Context) error {
	if s.remote == nil {
		return domain.ErrNoToken
	}
	return s.refresh(ctx, "initialize")
}

// RefreshMetadata re-fetches projects, labels and sections on request.
func (s *Service) RefreshMetadata(ctx context.Context) (MetadataStats, error) {
	if s.remote == nil {
		return MetadataStats{}, domain.ErrNoToken
	}
	if err := s.refresh(ctx, "explicit"); err != nil {
		return MetadataStats{}, err
	}
	return s.cache.Stats(), nil
}

// Render parses one embedded config block and organizes its tasks.
func (s *Service) Render(ctx context.Context, rawConfig []byte) (domain.OrganizedView, error) {
	if s.remote == nil {
		return domain.OrganizedView{}, domain.ErrNoToken
	}
	raw, err := ParseViewConfig(rawConfig)
	if err != nil {
		s.logger.Debug("render rejected config", "err", err)
		return domain.OrganizedView{}, err
	}
	return s.RenderConfig(ctx, raw)
}

// RenderConfig organizes the tasks selected by an already decoded config.
func (s *Service) RenderConfig(ctx context.Context, raw domain.RawViewConfig) (domain.OrganizedView, error) {
	if s.remote == nil {
		return domain.OrganizedView{}, domain.ErrNoToken
	}
	invocationID := s.idGen()
	cfg, err := ValidateViewConfig(raw, s.defaultSortOrder)
	if err != nil {
		s.logger.Debug("render rejected config", "invocation_id", invocationID, "err", err)
		return domain.OrganizedView{}, err
	}

	query, err := s.queries.Build(ctx, cfg)
	if err != nil {
		s.logger.Debug("render query failed", "invocation_id", invocationID, "mode", cfg.Mode, "err", err)
		return domain.OrganizedView{}, err
	}

	tasks, err := s.remote.FetchTasks(ctx, query)
	if err != nil {
		s.logger.Error("fetch tasks failed", "invocation_id", invocationID, "query", query.String(), "err", err)
		return domain.OrganizedView{}, remoteErrorFrom(err)
	}
	if len(tasks) == 0 {
		s.logger.Debug("render produced no tasks", "invocation_id", invocationID, "query", query.String())
		return domain.OrganizedView{Mode: cfg.Mode, GroupBy: cfg.Settings.GroupBy, Groups: []domain.Group{}, Empty: true}, nil
	}

	if missing := s.cache.Missing(tasks); missing.Any() {
		s.logger.Info(
			"tasks reference unknown metadata",
			"invocation_id", invocationID,
			"projects", missing.Projects,
			"sections", missing.Sections,
			"labels", missing.Labels,
		)
		if err := s.refresh(ctx, "consistency_check"); err != nil {
			return domain.OrganizedView{}, err
		}
	}

	view, err := Organize(tasks, cfg, s.cache, s.clock(), s.loc)
	if err != nil {
		s.logger.Warn("organize failed", "invocation_id", invocationID, "err", err)
		return domain.OrganizedView{}, err
	}
	s.logger.Debug(
		"render complete",
		"invocation_id", invocationID,
		"mode", cfg.Mode,
		"query", query.String(),
		"tasks", len(tasks),
		"groups", len(view.Groups),
	)
	return view, nil
}

// SetTaskCompletion closes or reopens a task. On failure the remote state is unchanged
// and callers must revert any optimistic local change.
func (s *Service) SetTaskCompletion(ctx context.Context, taskID int64, completed bool) error {
	if s.remote == nil {
		return domain.ErrNoToken
	}
	var err error
	if completed {
		err = s.remote.CloseTask(ctx, taskID)
	} else {
		err = s.remote.ReopenTask(ctx, taskID)
	}
	if err != nil {
		s.logger.Error("set task completion failed", "task_id", taskID, "completed", completed, "err", err)
		return remoteErrorFrom(err)
	}
	s.logger.Info("task completion updated", "task_id", taskID, "completed", completed)
	return nil
}

// refresh re-fetches metadata and logs why.
func (s *Service) refresh(ctx context.Context, reason string) error {
	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Error("metadata refresh failed", "reason", reason, "err", err)
		return remoteErrorFrom(err)
	}
	stats := s.cache.Stats()
	s.logger.Debug(
		"metadata refreshed",
		"reason", reason,
		"projects", stats.Projects,
		"sections", stats.Sections,
		"labels", stats.Labels,
	)
	return nil
}
