// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - ContentType must be a known value
//
// NOT validated:
//   - Id (0 means derive from Name)
//   - SourceURI (opaque to the core, may be empty for local ingestion)
//   - ChunkCount and timestamps (populated by the pipeline)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocumentName)
	}

	if err := ValidateContentType(doc.ContentType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateContentType validates that a ContentType has a known value.
func ValidateContentType(t ContentType) error {
	switch t {
	case ContentTypePDF, ContentTypeText, ContentTypeCode, ContentTypeOther:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidContentType, t)
	}
}

// codeExtensions are file extensions treated as source code, where chunk
// boundaries prefer line breaks.
var codeExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".c":    true,
	".cc":   true,
	".cpp":  true,
	".h":    true,
	".rs":   true,
	".rb":   true,
	".sh":   true,
	".sql":  true,
	".css":  true,
}

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".rst":  true,
	".csv":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".xml":  true,
	".html": true,
	".rtf":  true,
}

// DetectContentType maps a filename extension to a ContentType.
// Unknown extensions map to ContentTypeOther.
func DetectContentType(filename string) ContentType {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return ContentTypePDF
	case codeExtensions[ext]:
		return ContentTypeCode
	case textExtensions[ext]:
		return ContentTypeText
	default:
		return ContentTypeOther
	}
}
