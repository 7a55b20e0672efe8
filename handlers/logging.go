package handlers

import (
	"log/slog"
	"time"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// Logging logs every invocation and its outcome
type Logging struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogging creates a logging handler that logs successful calls at Info
func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger, level: slog.LevelInfo}
}

// WithLevel sets the level of the start and success records
func (h *Logging) WithLevel(level slog.Level) *Logging {
	h.level = level
	return h
}

// Invoke implements pipeline.Handler
func (h *Logging) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	logger := h.logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := inv.Context()
	start := time.Now()

	logger.Log(ctx, h.level, "invoking method",
		"method", inv.Method.String(),
		"invocationId", inv.ID,
	)

	ret := getNext()(inv, getNext)
	duration := time.Since(start)

	if err := ret.Err(); err != nil {
		logger.Error("method invocation failed",
			"method", inv.Method.String(),
			"invocationId", inv.ID,
			"duration", duration,
			"error", err,
		)
	} else {
		logger.Log(ctx, h.level, "method invoked successfully",
			"method", inv.Method.String(),
			"invocationId", inv.ID,
			"duration", duration,
		)
	}

	return ret
}

// Name implements pipeline.Handler
func (h *Logging) Name() string {
	return "LoggingHandler"
}
