/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package render presents evaluation traces.

Four formats are supported:

	text     terminal output styled with lipgloss, one box per step
	json     the trace as served by the HTTP API
	msgpack  the same document in MessagePack, for compact exports
	html     a standalone trace viewer page

Styling degrades to plain text when the output is not a terminal.
*/
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	rerrors "raedu/internal/errors"
	"raedu/internal/ra"
)

// Format names an output encoding.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatHTML    Format = "html"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatMsgpack, FormatHTML}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, known := range Formats {
		names[i] = string(known)
	}
	return "", rerrors.InvalidValue("format", fmt.Sprintf("unknown format %q", name)).
		WithHint("Supported formats: " + strings.Join(names, ", "))
}

// Encode writes trace to w in the given format.
func Encode(w io.Writer, trace *ra.Trace, format Format) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, Text(trace))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)
	case FormatMsgpack:
		return EncodeMsgpack(w, trace)
	case FormatHTML:
		return HTML(w, trace)
	}
	return rerrors.InvalidValue("format", fmt.Sprintf("unknown format %q", format))
}

// wireTrace mirrors ra.Trace with rows flattened to maps, since ra.Row
// keeps its fields private.
type wireTrace struct {
	Expression  string           `msgpack:"expression"`
	Database    string           `msgpack:"database,omitempty"`
	Steps       []wireStep       `msgpack:"steps"`
	FinalSchema []string         `msgpack:"final_schema"`
	FinalRows   int              `msgpack:"final_rows"`
	Preview     []map[string]any `msgpack:"preview"`
}

type wireStep struct {
	Op           string           `msgpack:"op"`
	Detail       *ra.Detail       `msgpack:"detail,omitempty"`
	InputSchema  [][]string       `msgpack:"input_schema,omitempty"`
	OutputSchema []string         `msgpack:"output_schema"`
	Rows         int              `msgpack:"rows"`
	Preview      []map[string]any `msgpack:"preview"`
	Delta        *wireDelta       `msgpack:"delta,omitempty"`
	Note         string           `msgpack:"note,omitempty"`
}

type wireDelta struct {
	RowsBefore        int              `msgpack:"rows_before"`
	RowsAfter         int              `msgpack:"rows_after"`
	AttributesAdded   []string         `msgpack:"attributes_added,omitempty"`
	AttributesRemoved []string         `msgpack:"attributes_removed,omitempty"`
	RemovedRows       []map[string]any `msgpack:"removed_rows,omitempty"`
	AddedRows         []map[string]any `msgpack:"added_rows,omitempty"`
}

func rowMaps(rows []ra.Row) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	return out
}

func toWire(t *ra.Trace) *wireTrace {
	w := &wireTrace{
		Expression:  t.Expression,
		Database:    t.Database,
		Steps:       make([]wireStep, len(t.Steps)),
		FinalSchema: t.FinalSchema,
		FinalRows:   t.FinalRows,
		Preview:     rowMaps(t.Preview),
	}
	for i, s := range t.Steps {
		ws := wireStep{
			Op:           s.Op,
			Detail:       s.Detail,
			InputSchema:  s.InputSchema,
			OutputSchema: s.OutputSchema,
			Rows:         s.Rows,
			Preview:      rowMaps(s.Preview),
			Note:         s.Note,
		}
		if d := s.Delta; d != nil {
			ws.Delta = &wireDelta{
				RowsBefore:        d.RowsBefore,
				RowsAfter:         d.RowsAfter,
				AttributesAdded:   d.AttributesAdded,
				AttributesRemoved: d.AttributesRemoved,
				RemovedRows:       rowMaps(d.RemovedRows),
				AddedRows:         rowMaps(d.AddedRows),
			}
		}
		w.Steps[i] = ws
	}
	return w
}

// EncodeMsgpack writes trace as MessagePack. Field names match the JSON
// encoding; row maps are written with sorted keys so output is stable.
func EncodeMsgpack(w io.Writer, trace *ra.Trace) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	return enc.Encode(toWire(trace))
}
