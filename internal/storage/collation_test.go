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

package storage

import (
	"testing"

	rerrors "raedu/internal/errors"
	"raedu/internal/ra"
)

var (
	_ ra.Collator = &BinaryCollator{}
	_ ra.Collator = &NocaseCollator{}
	_ ra.Collator = &UnicodeCollator{}
)

func TestBinaryCollator(t *testing.T) {
	c := &BinaryCollator{}

	if c.Compare("abc", "abd") >= 0 {
		t.Error("Expected abc < abd")
	}
	if c.Compare("B", "a") >= 0 {
		t.Error("Expected B < a byte-wise")
	}
	if c.Equal("abc", "ABC") {
		t.Error("Expected abc != ABC for binary collation")
	}
}

func TestNocaseCollator(t *testing.T) {
	c := &NocaseCollator{}

	if c.Compare("ABC", "abc") != 0 {
		t.Error("Expected ABC == abc (case-insensitive)")
	}
	if c.Compare("abc", "ABD") >= 0 {
		t.Error("Expected abc < ABD (case-insensitive)")
	}
	if !c.Equal("Hello", "HELLO") {
		t.Error("Expected Hello == HELLO (case-insensitive)")
	}
}

func TestUnicodeCollator(t *testing.T) {
	c := NewUnicodeCollator("en")

	if c.Compare("a", "B") >= 0 {
		t.Error("Expected a < B in unicode collation")
	}
	if !c.Equal("café", "CAFE") {
		t.Error("Expected café == CAFE under loose unicode collation")
	}
	if c.Name() != "unicode:en" {
		t.Errorf("Unexpected name %s", c.Name())
	}
}

func TestCollatorFor(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "binary", false},
		{"binary", "binary", false},
		{"NOCASE", "nocase", false},
		{"unicode", "unicode:en", false},
		{"unicode:de", "unicode:de", false},
		{"ebcdic", "", true},
	}
	for _, tt := range tests {
		c, err := CollatorFor(tt.name)
		if tt.wantErr {
			if !rerrors.IsValidationError(err) {
				t.Errorf("CollatorFor(%q): expected validation error, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CollatorFor(%q) failed: %v", tt.name, err)
			continue
		}
		if c.Name() != tt.want {
			t.Errorf("CollatorFor(%q) = %s, want %s", tt.name, c.Name(), tt.want)
		}
	}
}

func TestCollatorDrivesSelection(t *testing.T) {
	rels := map[string]*ra.Relation{
		"people": ra.MustRelation([]string{"name"}, []any{"Ann"}, []any{"Bo"}),
	}
	trace, err := ra.EvaluateExpression("σ{name = 'ann'}(people)", rels)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if trace.FinalRows != 0 {
		t.Errorf("Expected no binary match, got %d", trace.FinalRows)
	}

	trace, err = ra.EvaluateExpression("σ{name = 'ann'}(people)", rels, ra.WithCollator(&NocaseCollator{}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if trace.FinalRows != 1 {
		t.Errorf("Expected one case-insensitive match, got %d", trace.FinalRows)
	}
}
