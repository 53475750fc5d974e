package server

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks a malformed or incomplete request.
var ErrValidation = errors.New("validation failed")

// ContactRequest is the body of POST /contact.
type ContactRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email,max=320"`
	Company   string `json:"company" validate:"max=200"`
	Service   string `json:"service" validate:"max=200"`
	Budget    string `json:"budget" validate:"max=100"`
	Message   string `json:"message" validate:"required,max=10000"`
	Source    string `json:"source" validate:"max=100"`
	UserAgent string `json:"userAgent" validate:"max=1000"`
	PageURL   string `json:"pageUrl" validate:"omitempty,max=2000"`
}

// SearchRequest is the body of POST /documents/search.
type SearchRequest struct {
	Query   string         `json:"query" validate:"max=1000"`
	Filters map[string]any `json:"filters"`
	Limit   int            `json:"limit" validate:"gte=0,lte=100"`
}

// uploadForm holds the non-file fields of a multipart upload.
type uploadForm struct {
	ContactID    string `json:"contact_id" validate:"required,max=255"`
	DocumentType string `json:"document_type" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=5000"`
	Tags         string `json:"tags" validate:"max=1000"`
}

// newValidator reports fields by their JSON name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct validates v and flattens the field errors into one message
// wrapped in ErrValidation.
func (s *Server) checkStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
}

// splitTags turns "a, b,,c" into [a b c].
func splitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// blockedExtensions are executables and installers.
var blockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true, ".pif": true,
	".scr": true, ".vbs": true, ".jar": true, ".app": true, ".deb": true,
	".rpm": true, ".dmg": true, ".pkg": true, ".msi": true, ".dll": true,
	".so": true, ".dylib": true,
}

// allowedMimeTypes are the non-text formats accepted for upload. Any text/*
// type is accepted as well.
var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/rtf":          true,
	"text/plain":               true,
	"text/csv":                 true,
	"text/markdown":            true,
	"text/html":                true,
	"application/json":         true,
	"application/xml":          true,
	"text/xml":                 true,
	"image/jpeg":               true,
	"image/png":                true,
	"image/gif":                true,
	"image/webp":               true,
	"image/tiff":               true,
	"application/zip":          true,
	"application/gzip":         true,
	"application/octet-stream": true,
}

// ValidateUploadMimeType rejects executables, unlisted non-text MIME types and
// declared types whose major type disagrees with the extension.
func ValidateUploadMimeType(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if blockedExtensions[ext] {
		return fmt.Errorf("file type not allowed: %s", ext)
	}

	declared := baseMime(contentType)
	if ext == "" && declared == "" {
		return errors.New("file must have an extension or content type")
	}
	if declared == "" {
		return nil
	}
	if !allowedMimeTypes[declared] && majorType(declared) != "text" {
		return fmt.Errorf("MIME type not allowed: %s", declared)
	}

	expected := baseMime(mime.TypeByExtension(ext))
	if expected == "" || declared == expected || declared == "application/octet-stream" {
		return nil
	}
	if majorType(expected) != majorType(declared) {
		return fmt.Errorf("MIME type mismatch: extension suggests %s but got %s", expected, declared)
	}
	return nil
}

func baseMime(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func majorType(ct string) string {
	major, _, _ := strings.Cut(ct, "/")
	return major
}

// SanitizeFilename strips path separators and NUL bytes, replaces invalid
// UTF-8, trims dots and spaces, and caps the length at 255 bytes keeping the
// extension. The cut never splits a rune.
func SanitizeFilename(filename string) string {
	filename = strings.ToValidUTF8(filename, "_")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) > 32 {
			ext = ""
		}
		stem := filename[:len(filename)-len(ext)]
		cut := 255 - len(ext)
		for cut > 0 && !utf8.RuneStart(stem[cut]) {
			cut--
		}
		filename = stem[:cut] + ext
	}
	if filename == "" {
		filename = "unnamed"
	}
	return filename
}
