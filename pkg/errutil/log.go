// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package errutil carries oops-aware error logging and test helpers.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error at Error level. Oops errors contribute their
// code and structured context as attributes; plain errors log as a
// bare string.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, slog.Any("error", err))
		return
	}

	attrs := []any{slog.String("error", oopsErr.Error())}
	if code, ok := oopsErr.Code().(string); ok && code != "" {
		attrs = append(attrs, slog.String("code", code))
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, slog.Any("context", ctx))
	}
	logger.Error(msg, attrs...)
}

// Code returns the oops error code, or "" for plain errors.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}
