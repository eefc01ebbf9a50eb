package app

import (
	"context"

	"github.com/hylla/todoembed/internal/domain"
)

// MetadataSource lists the remote lookup tables backing the metadata cache.
type MetadataSource interface {
	ListProjects(context.Context) ([]domain.Project, error)
	ListSections(context.Context) ([]domain.Section, error)
	ListLabels(context.Context) ([]domain.Label, error)
}

// RemoteTaskService is the remote source of truth for tasks and their metadata.
type RemoteTaskService interface {
	MetadataSource
	FetchTasks(context.Context, Query) ([]domain.Task, error)
	CloseTask(context.Context, int64) error
	ReopenTask(context.Context, int64) error
}

// Logger receives structured runtime events. charm log loggers satisfy it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// nopLogger discards every event.
type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}
