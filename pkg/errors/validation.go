package errors

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLength is the maximum accepted size of a free-text architecture description.
const MaxTextLength = 64 * 1024

// Detail levels accepted by the extraction step.
const (
	DetailLite        = "lite"
	DetailStandard    = "standard"
	DetailThreatModel = "threat-model"
)

// ValidateText validates a free-text architecture description for safety.
//
// The validation rules are intentionally conservative:
//   - Must be valid UTF-8
//   - No null bytes or control characters other than tab and newlines
//   - Maximum length of [MaxTextLength] bytes
//
// Empty text is allowed; extraction falls back to a generic architecture.
func ValidateText(text string) error {
	if len(text) > MaxTextLength {
		return New(ErrCodeInvalidInput, "text too long (max %d bytes)", MaxTextLength)
	}
	if !utf8.ValidString(text) {
		return New(ErrCodeInvalidInput, "text must be valid UTF-8")
	}
	for _, r := range text {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "text contains invalid control characters")
		}
	}
	return nil
}

// ValidateDetailLevel checks that level is one of lite, standard or threat-model.
// An empty level is accepted and means standard.
func ValidateDetailLevel(level string) error {
	switch level {
	case "", DetailLite, DetailStandard, DetailThreatModel:
		return nil
	}
	return New(ErrCodeInvalidInput, "invalid detail level: %q (must be one of: lite, standard, threat-model)", level)
}

// ValidateProfile validates a diagram profile name.
func ValidateProfile(profile string) error {
	if len(profile) > 128 {
		return New(ErrCodeInvalidInput, "profile too long (max 128 characters)")
	}
	for _, r := range profile {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "profile contains invalid control characters")
		}
	}
	return nil
}

// ValidateOutputFilename validates a download filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateOutputFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}
	if strings.ContainsAny(filename, "/\\\"") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators or quotes")
	}
	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidInput, "filename cannot be a hidden file")
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "filename contains invalid control characters")
		}
	}
	return nil
}
