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
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	rerrors "raedu/internal/errors"
)

// Collator provides string comparison based on collation rules.
// Every Collator satisfies ra.Collator and can be passed to the evaluator
// through ra.WithCollator.
type Collator interface {
	// Compare compares two strings according to collation rules.
	// Returns -1 if a < b, 0 if a == b, 1 if a > b.
	Compare(a, b string) int

	// Equal returns true if two strings are equal according to collation rules.
	Equal(a, b string) bool

	// Name returns the collation name as accepted by CollatorFor.
	Name() string
}

// BinaryCollator uses strict byte-wise comparison.
type BinaryCollator struct{}

// Compare implements Collator.
func (c *BinaryCollator) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Equal implements Collator.
func (c *BinaryCollator) Equal(a, b string) bool {
	return a == b
}

// Name implements Collator.
func (c *BinaryCollator) Name() string { return "binary" }

// NocaseCollator uses case-insensitive comparison.
type NocaseCollator struct{}

// Compare implements Collator.
func (c *NocaseCollator) Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Equal implements Collator.
func (c *NocaseCollator) Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Name implements Collator.
func (c *NocaseCollator) Name() string { return "nocase" }

// UnicodeCollator uses Unicode collation with locale support.
// Comparison is loose: case and accents are ignored.
type UnicodeCollator struct {
	collator *collate.Collator
	locale   string
}

// NewUnicodeCollator creates a new Unicode collator for the given locale.
// An unknown locale falls back to English.
func NewUnicodeCollator(locale string) *UnicodeCollator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &UnicodeCollator{
		collator: collate.New(tag, collate.Loose),
		locale:   tag.String(),
	}
}

// Compare implements Collator.
func (c *UnicodeCollator) Compare(a, b string) int {
	return c.collator.CompareString(a, b)
}

// Equal implements Collator.
func (c *UnicodeCollator) Equal(a, b string) bool {
	return c.collator.CompareString(a, b) == 0
}

// Name implements Collator.
func (c *UnicodeCollator) Name() string { return "unicode:" + c.locale }

// CollatorFor returns the Collator for a configuration name:
// "binary", "nocase", "unicode" (English) or "unicode:<locale>".
func CollatorFor(name string) (Collator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case name == "" || name == "binary":
		return &BinaryCollator{}, nil
	case name == "nocase":
		return &NocaseCollator{}, nil
	case name == "unicode":
		return NewUnicodeCollator("en"), nil
	case strings.HasPrefix(name, "unicode:"):
		locale := strings.TrimPrefix(name, "unicode:")
		if _, err := language.Parse(locale); err != nil {
			return nil, rerrors.InvalidValue("collation", "unknown locale "+locale)
		}
		return NewUnicodeCollator(locale), nil
	}
	return nil, rerrors.InvalidValue("collation",
		"must be binary, nocase, unicode or unicode:<locale>, got "+name)
}
