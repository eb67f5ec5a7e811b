// Package template renders the templated values authors put into workflow actions.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
)

// Context describes what a template can reference besides the record.
type Context struct {
	TenantID     int64
	UserID       int64
	WorkflowID   int64
	WorkflowName string
	Now          time.Time
}

// NeedsTemplating reports whether a value contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderForRecord renders input with the record available as .entity.
func RenderForRecord(input string, record models.Record, ctx Context) (string, error) {
	entity, err := toMap(record)
	if err != nil {
		return "", err
	}

	data := map[string]any{
		"entity":     entity,
		"entityType": record.EntityType(),
		"tenantId":   ctx.TenantID,
		"userId":     ctx.UserID,
		"workflow": map[string]any{
			"id":   ctx.WorkflowID,
			"name": ctx.WorkflowName,
		},
	}

	return Render(input, data, ctx.Now)
}

// Render executes templateStr against data. now backs the "now" and "today" functions.
func Render(templateStr string, data any, now time.Time) (string, error) {
	tmpl, err := template.
		New("value").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return now.UTC().Format(time.RFC3339)
			},
			"today": func() string {
				return now.UTC().Format(time.DateOnly)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"trim":  strings.TrimSpace,
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

func toMap(record models.Record) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record for templating: %w", err)
	}

	var out map[string]any

	err = json.Unmarshal(data, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record for templating: %w", err)
	}

	return out, nil
}
