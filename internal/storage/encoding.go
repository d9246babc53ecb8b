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
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	rerrors "raedu/internal/errors"
)

// CharacterEncoding names the text encoding of a dataset file.
type CharacterEncoding string

const (
	EncodingUTF8        CharacterEncoding = "utf-8"
	EncodingLatin1      CharacterEncoding = "latin1"
	EncodingWindows1252 CharacterEncoding = "windows-1252"
)

var encodingAliases = map[string]CharacterEncoding{
	"":             EncodingUTF8,
	"utf8":         EncodingUTF8,
	"utf-8":        EncodingUTF8,
	"latin1":       EncodingLatin1,
	"latin-1":      EncodingLatin1,
	"iso-8859-1":   EncodingLatin1,
	"iso8859-1":    EncodingLatin1,
	"windows-1252": EncodingWindows1252,
	"cp1252":       EncodingWindows1252,
}

// ParseEncoding resolves an encoding name or alias.
func ParseEncoding(name string) (CharacterEncoding, error) {
	enc, ok := encodingAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", rerrors.InvalidValue("encoding", "unsupported encoding "+name+" (use utf-8, latin1 or windows-1252)")
	}
	return enc, nil
}

func (e CharacterEncoding) charmap() encoding.Encoding {
	switch e {
	case EncodingLatin1:
		return charmap.ISO8859_1
	case EncodingWindows1252:
		return charmap.Windows1252
	}
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText converts data in encoding e to UTF-8. A leading UTF-8 byte
// order mark is dropped; UTF-8 input must be valid.
func DecodeText(data []byte, e CharacterEncoding) ([]byte, error) {
	cm := e.charmap()
	if cm == nil {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return nil, rerrors.InvalidValue("encoding", "input is not valid UTF-8; set the encoding to latin1 or windows-1252")
		}
		return data, nil
	}
	return cm.NewDecoder().Bytes(data)
}
