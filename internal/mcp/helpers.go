package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// register adds a tool whose input schema is derived from In and whose result is the
// payload rendered as indented JSON text. Errors become tool errors, not protocol errors.
func register[In any](srv *mcp.Server, name, description string, fn func(ctx context.Context, in In) (any, error)) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("input schema for %s: %v", name, err))
	}
	tool := &mcp.Tool{Name: name, Description: description, InputSchema: schema}

	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		started := time.Now()
		data, err := fn(ctx, in)
		if err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
			return errorResult(err), nil, nil
		}
		log.Debug().Str("tool", name).Dur("elapsed", time.Since(started)).Msg("Tool call completed")
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatResult(data)}},
		}, nil, nil
	})
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func formatResult(data any) string {
	out, _ := json.MarshalIndent(data, "", "  ")
	return string(out)
}

// parseDate reads a YYYY-MM-DD date; empty input yields fallback.
func parseDate(field, value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q (want YYYY-MM-DD)", field, value)
	}
	return t, nil
}

// endOfDay moves a date-only value to its last instant so the whole day is included.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, time.UTC)
}
