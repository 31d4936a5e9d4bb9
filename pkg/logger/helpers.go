package logger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an outbound HTTP request at a level chosen by its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500 || statusCode == 0:
		l.ErrorWithFields("HTTP request failed", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogPageFetch logs one page of a paginated fetch
func LogPageFetch(l Logger, userID string, request, items int, nextToken string) {
	l.DebugWithFields("page fetched", map[string]interface{}{
		"user_id":    userID,
		"request":    request,
		"items":      items,
		"has_more":   nextToken != "",
		"next_token": nextToken,
	})
}

// LogQuota logs the state of a quota dimension
func LogQuota(l Logger, dimension string, used, ceiling int) {
	percentage := 0.0
	if ceiling > 0 {
		percentage = float64(used) / float64(ceiling) * 100
	}
	l.InfoWithFields("quota status", map[string]interface{}{
		"dimension":  dimension,
		"used":       used,
		"ceiling":    ceiling,
		"remaining":  ceiling - used,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	})
}

// LogSourceResult logs the outcome of one source pass
func LogSourceResult(l Logger, handle, status string, requests, inserted, duplicates int, duration time.Duration) {
	fields := map[string]interface{}{
		"source":      handle,
		"status":      status,
		"requests":    requests,
		"inserted":    inserted,
		"duplicates":  duplicates,
		"duration_ms": duration.Milliseconds(),
	}
	if status == "failed" {
		l.WarnWithFields("source pass failed", fields)
		return
	}
	l.InfoWithFields("source pass finished", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("component started", settings)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
