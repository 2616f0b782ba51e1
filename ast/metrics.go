// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for parse operations.
var (
	tracer = otel.Tracer("project-mapper/ast")
	meter  = otel.Meter("project-mapper/ast")
)

// Metrics for parse operations.
var (
	parseTotal    metric.Int64Counter
	parseErrors   metric.Int64Counter
	parseDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseTotal, err = meter.Int64Counter(
			"ast_parse_total",
			metric.WithDescription("Total number of files parsed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseErrors, err = meter.Int64Counter(
			"ast_parse_errors",
			metric.WithDescription("Number of files that failed to parse"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseDuration, err = meter.Float64Histogram(
			"ast_parse_duration_seconds",
			metric.WithDescription("Per-file parse duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records metrics for one parse operation.
func recordParseMetrics(ctx context.Context, language string, duration time.Duration, failed bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("language", language))
	parseTotal.Add(ctx, 1, attrs)
	if failed {
		parseErrors.Add(ctx, 1, attrs)
	}
	parseDuration.Record(ctx, duration.Seconds(), attrs)
}
