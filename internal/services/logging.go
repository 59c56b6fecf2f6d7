package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/course-player/internal/utils"
)

// ServiceLogger records the outcome of learner-facing operations with a
// level that follows the error class.
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, component string) *ServiceLogger {
	return &ServiceLogger{logger: logger.With("component", component)}
}

func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, learnerID uint, resource string, duration time.Duration, err error) {
	level, status := slog.LevelInfo, "success"
	if err != nil {
		level, status = classify(err)
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Uint64("learner_id", uint64(learnerID)),
		slog.String("resource", resource),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		var permErr *PermissionError
		if errors.As(err, &permErr) {
			attrs = append(attrs, slog.String("permission_action", permErr.Action))
		}
	}
	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// WithOperation starts timing an operation; LogResult closes it.
func (l *ServiceLogger) WithOperation(ctx context.Context, operation string, learnerID uint) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		learnerID: learnerID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	learnerID uint
	startTime time.Time
	ctx       context.Context
}

func (cl *ContextualLogger) LogResult(resource string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.learnerID, resource, time.Since(cl.startTime), err)
}

func classify(err error) (slog.Level, string) {
	switch {
	case IsValidation(err):
		return slog.LevelWarn, "validation_error"
	case IsUnauthorized(err):
		return slog.LevelWarn, "unauthorized"
	case IsForbidden(err):
		return slog.LevelWarn, "forbidden"
	case IsNotFound(err):
		return slog.LevelInfo, "not_found"
	case IsConflict(err):
		return slog.LevelWarn, "conflict"
	case IsUpstream(err):
		return slog.LevelError, "upstream_error"
	default:
		return slog.LevelError, "error"
	}
}
