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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func capture(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	Configure(cfg)
	t.Cleanup(func() { Configure(DefaultConfig()) })
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, Config{Level: WARN})
	logger := NewLogger("test")
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO should be filtered at WARN level: %q", out)
	}
	if !strings.Contains(out, "[WARN ] [test] shown") {
		t.Errorf("Expected WARN entry, got %q", out)
	}
}

func TestTextFieldsAreSorted(t *testing.T) {
	buf := capture(t, Config{Level: DEBUG})
	NewLogger("catalog").With("database", "school").Info("Imported", "table", "students", "rows", 3)
	out := buf.String()
	if !strings.Contains(out, "Imported database=school rows=3 table=students") {
		t.Errorf("Unexpected text entry %q", out)
	}
}

func TestJSONMode(t *testing.T) {
	buf := capture(t, Config{Level: DEBUG, JSONMode: true})
	NewLogger("server").Error("Request failed", "error", errors.New("boom"), "status", 500)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON entry, got %q: %v", buf.String(), err)
	}
	if entry.Level != "ERROR" || entry.Component != "server" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if entry.Fields["error"] != "boom" {
		t.Errorf("Expected error rendered as text, got %v", entry.Fields["error"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": DEBUG, "INFO": INFO, "warning": WARN, " Error ": ERROR, "bogus": INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestContext(t *testing.T) {
	buf := capture(t, Config{Level: INFO})
	rc := NewRequestContext("", "127.0.0.1", "evaluate")
	if len(rc.ID) != 36 {
		t.Errorf("Expected a UUID request id, got %q", rc.ID)
	}
	rc.LogComplete(NewLogger("server"), 200)
	if !strings.Contains(buf.String(), "request_id="+rc.ID) {
		t.Errorf("Expected request id in %q", buf.String())
	}
	if NewRequestContext("fixed", "", "").ID != "fixed" {
		t.Error("Expected supplied id to be kept")
	}
}
