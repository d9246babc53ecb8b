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
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		enc  CharacterEncoding
		want string
	}{
		{"utf8 passthrough", []byte("Zoë"), EncodingUTF8, "Zoë"},
		{"utf8 bom", []byte("\xEF\xBB\xBFid"), EncodingUTF8, "id"},
		{"latin1", []byte("Jos\xe9"), EncodingLatin1, "José"},
		{"windows-1252 euro", []byte("\x80 5"), EncodingWindows1252, "€ 5"},
		{"empty", nil, EncodingUTF8, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.in, tt.enc)
			if err != nil {
				t.Fatalf("DecodeText failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("DecodeText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeTextRejectsInvalidUTF8(t *testing.T) {
	_, err := DecodeText([]byte{'a', 0xff, 'b'}, EncodingUTF8)
	if !rerrors.IsValidationError(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
