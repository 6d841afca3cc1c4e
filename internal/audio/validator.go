package audio

import (
	"fmt"
	"strings"
)

// Upload describes a received audio file before any provider sees it.
// ContentType is the type declared by the client, not a sniffed one.
type Upload struct {
	ContentType string
	Size        int64
}

type Validator struct {
	maxFileMB    int
	allowedTypes []string
}

func NewValidator(maxFileMB int, allowedTypes []string) *Validator {
	cleaned := make([]string, 0, len(allowedTypes))
	for _, t := range allowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return &Validator{maxFileMB: maxFileMB, allowedTypes: cleaned}
}

// Validate returns one message per violated constraint, nil when the upload
// is acceptable. A missing declared type is not treated as a violation.
func (v *Validator) Validate(u Upload) []string {
	var problems []string

	if u.Size == 0 {
		problems = append(problems, "The submitted file is empty.")
	}

	contentType := strings.ToLower(strings.TrimSpace(u.ContentType))
	if contentType != "" && !v.allowed(contentType) {
		problems = append(problems, fmt.Sprintf("Unsupported audio type '%s'. Allowed: %s",
			contentType, strings.Join(v.allowedTypes, ", ")))
	}

	if u.Size > int64(v.maxFileMB)<<20 {
		problems = append(problems, fmt.Sprintf("File too large. Max %d MB allowed.", v.maxFileMB))
	}

	return problems
}

func (v *Validator) allowed(contentType string) bool {
	for _, t := range v.allowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
