// Package out renders response envelopes as JSON or plain key=value
// lines. Payloads are normalized through JSON once so projection and
// plain rendering see the same shapes the JSON encoder would emit.
package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nmorales/agentexec/internal/config"
	"github.com/nmorales/agentexec/internal/model"
)

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := normalize(env.Data)
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	if settings.OutputMode == "json" {
		payload := data
		if !settings.ResultsOnly {
			env.Data = data
			payload = env
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if settings.ResultsOnly {
		return writePlain(w, data)
	}
	plain := map[string]any{
		"success":  env.Success,
		"data":     data,
		"warnings": env.Warnings,
		"meta":     env.Meta,
	}
	if env.Error != nil {
		plain["error"] = env.Error
	}
	return writePlain(w, normalize(plain))
}

// writePlain emits one line per list item, or a single line for scalar
// and object payloads.
func writePlain(w io.Writer, data any) error {
	list, ok := data.([]any)
	if !ok {
		line, err := toLine(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, line)
		return err
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "[]")
		return err
	}
	for _, item := range list {
		line, err := toLine(item)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// project keeps only the selected top-level fields of an object payload,
// applied per element for lists. Non-object payloads pass through.
func project(data any, fields []string) any {
	pick := func(m map[string]any) map[string]any {
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, ok := m[f]; ok {
				out[f] = v
			}
		}
		return out
	}

	switch t := data.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, pick(m))
			}
		}
		return out
	case map[string]any:
		return pick(t)
	}
	return data
}

// normalize round-trips a value through JSON so typed structs become the
// generic maps and slices the renderers operate on.
func normalize(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func toLine(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		buf, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " "), nil
}
