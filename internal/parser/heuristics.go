package parser

import (
	"path"
	"strings"
	"unicode"
)

// fileExtensions is the closed set of extensions that make a bare token look like a file.
var fileExtensions = map[string]struct{}{}

func init() {
	for _, ext := range strings.Fields(`.md .txt .py .js .ts .tsx .jsx .html .css .json .yaml .yml .dart
		.java .cpp .c .h .xml .csv .pdf .doc .docx .xls .xlsx .png .jpg .jpeg .gif .svg .webp .ico
		.sql .log .conf .config .ini .properties .env .sh .bat .ps1 .mp4 .mp3 .wav`) {
		fileExtensions[ext] = struct{}{}
	}
}

var skipPrefixes = []string{"http://", "https://", "mailto:", "tel:", "ftp://", "data:", "javascript:"}

// IsExternal reports whether s is a URL or other non-file link.
func IsExternal(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range skipPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return strings.Contains(lower, "://")
}

// HasFileExtension reports whether s ends in a recognized extension. An anchor is ignored.
func HasFileExtension(s string) bool {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(s, `\`, "/")))
	_, ok := fileExtensions[ext]
	return ok
}

// LooksLikeFilePath accepts strings that contain a path separator, start with "./"
// or "../", or carry a recognized extension.
func LooksLikeFilePath(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 260 || IsExternal(s) || strings.ContainsAny(s, "\n\t<>|*?\"") {
		return false
	}
	if strings.HasPrefix(s, "#") || !strings.ContainsFunc(s, unicode.IsLetter) {
		return false
	}
	if strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, `.\`) || strings.HasPrefix(s, `..\`) {
		return true
	}
	if strings.ContainsAny(s, `/\`) {
		return !strings.Contains(s, " ") || HasFileExtension(s)
	}
	return HasFileExtension(s)
}
