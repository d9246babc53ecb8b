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

package render

import (
	"encoding/json"
	"html/template"
	"io"
	"strings"

	"raedu/internal/ra"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"schema":  schemaText,
	"pretty":  prettyJSON,
	"cells":   cells,
	"detail":  func(d *ra.Detail) string { return d.String() },
	"colspan": colspan,
}).Parse(reportHTML))

// HTML writes a standalone trace viewer page.
func HTML(w io.Writer, t *ra.Trace) error {
	return reportTemplate.Execute(w, t)
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func colspan(schema []string) int {
	if len(schema) == 0 {
		return 1
	}
	return len(schema)
}

func cells(r ra.Row) []string {
	vals := r.Values()
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}

var reportHTML = strings.TrimSpace(`
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Relational Algebra Trace</title>
  <style>
    body { font-family: system-ui, -apple-system, Segoe UI, Roboto, sans-serif; margin: 24px; }
    .card { border: 1px solid #ddd; border-radius: 12px; padding: 16px; margin-bottom: 16px; box-shadow: 0 1px 3px rgba(0,0,0,0.05); }
    .muted { color: #666; font-size: 0.9rem; }
    .note { color: #b45309; font-size: 0.9rem; margin-top: 8px; }
    code, pre { background: #f7f7f7; border-radius: 8px; padding: 4px 6px; }
    table { border-collapse: collapse; width: 100%; margin-top: 8px; }
    th, td { border-bottom: 1px solid #eee; padding: 6px 8px; text-align: left; }
    th { background: #fafafa; }
    h1 { margin-top: 0; }
    .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 12px; }
    .pill { display: inline-block; padding: 2px 8px; border: 1px solid #ddd; border-radius: 999px; font-size: 0.8rem; margin-left: 8px; }
    .step-title { font-weight: 600; }
  </style>
</head>
<body>
  <h1>Relational Algebra Trace</h1>
  <div class="muted">Expression: <code>{{.Expression}}</code></div>
  {{- if .Database}}
  <div class="muted">Database: <code>{{.Database}}</code></div>
  {{- end}}

  <h2>Steps</h2>
  {{- range $i, $s := .Steps}}
  <div class="card">
    <div class="step-title">Step {{inc $i}}: {{$s.Op}}{{with detail $s.Detail}} <span class="pill">{{.}}</span>{{end}}</div>
    <div class="muted">Rows: {{$s.Rows}}</div>
    <div class="grid">
      <div>
        <strong>Input schema</strong>
        <pre>{{range $s.InputSchema}}{{schema .}}
{{else}}none{{end}}</pre>
      </div>
      <div>
        <strong>Output schema</strong>
        <pre>{{schema $s.OutputSchema}}</pre>
      </div>
    </div>
    {{- if $s.Delta}}
    <div>
      <strong>Delta</strong>
      <pre>{{pretty $s.Delta}}</pre>
    </div>
    {{- end}}
    {{- if $s.Preview}}
    <table>
      <thead><tr>{{range $s.OutputSchema}}<th>{{.}}</th>{{end}}</tr></thead>
      <tbody>
      {{- range $s.Preview}}
        <tr>{{range cells .}}<td>{{.}}</td>{{end}}</tr>
      {{- end}}
      </tbody>
    </table>
    {{- end}}
    {{- if $s.Note}}
    <div class="note">{{$s.Note}}</div>
    {{- end}}
  </div>
  {{- else}}
  <div class="card"><div class="muted">No steps recorded.</div></div>
  {{- end}}

  <h2>Final Preview <span class="pill">{{.FinalRows}} rows</span></h2>
  <div class="card">
    <table>
      <thead>
        <tr>{{range .FinalSchema}}<th>{{.}}</th>{{else}}<th>result</th>{{end}}</tr>
      </thead>
      <tbody>
      {{- range .Preview}}
        <tr>{{range cells .}}<td>{{.}}</td>{{end}}</tr>
      {{- else}}
        <tr><td colspan="{{colspan .FinalSchema}}">No preview rows.</td></tr>
      {{- end}}
      </tbody>
    </table>
  </div>
</body>
</html>
`) + "\n"
