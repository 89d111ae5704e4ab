package upload

import (
	"strings"
)

// Validate checks a file against the size limit and the allowed extensions.
// It must pass before StartUpload is called.
func Validate(file FileHandle, maxSizeBytes int64, allowedExtensions []string) error {
	if file.SizeBytes > maxSizeBytes {
		return &ValidationError{
			Reason: ErrSizeExceeded,
			Name:   file.Name,
			Size:   file.SizeBytes,
			Limit:  maxSizeBytes,
		}
	}

	ext := Extension(file.Name)
	for _, allowed := range allowedExtensions {
		if ext == normalizeExtension(allowed) {
			return nil
		}
	}
	return &ValidationError{
		Reason:    ErrUnsupportedType,
		Name:      file.Name,
		Extension: ext,
		Size:      file.SizeBytes,
		Limit:     maxSizeBytes,
	}
}

// Extension returns the lowercased text after the last "." in name.
// A name without a dot is its own extension.
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
