// Binary file detection for early rejection of non-text files
package parser

import (
	"bytes"
	"path/filepath"
	"strings"
)

// BinaryDetector handles detection of binary files that should not be parsed. Such
// files are still tracked as link targets.
type BinaryDetector struct {
	binaryExtensions map[string]bool
}

// NewBinaryDetector creates a detector with the known binary extension table
func NewBinaryDetector() *BinaryDetector {
	extensions := map[string]bool{
		// Fonts
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,

		// Images
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
		".ico": true, ".webp": true, ".tiff": true, ".tif": true,
		".svg": false, // SVG is XML and may reference other files

		// Archives
		".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
		".jar": true,

		// Executables and objects
		".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true, ".bin": true,

		// Media
		".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true, ".flac": true, ".ogg": true,

		// Binary documents
		".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,

		// Databases and bytecode
		".db": true, ".sqlite": true, ".sqlite3": true,
		".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
	}

	return &BinaryDetector{binaryExtensions: extensions}
}

// IsBinaryByExtension checks if a file is binary based on its extension
func (bd *BinaryDetector) IsBinaryByExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	isBinary, exists := bd.binaryExtensions[ext]
	return exists && isBinary
}

// IsBinaryByMagicNumber checks the first 512 bytes for known signatures, null
// bytes and a high share of control characters.
func (bd *BinaryDetector) IsBinaryByMagicNumber(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	sample := content[:min(len(content), 512)]

	signatures := [][]byte{
		{0x1F, 0x8B},             // gzip
		{0x50, 0x4B, 0x03, 0x04}, // ZIP
		{0x50, 0x4B, 0x05, 0x06}, // empty ZIP
		{0x89, 0x50, 0x4E, 0x47}, // PNG
		{0xFF, 0xD8, 0xFF},       // JPEG
		{0x47, 0x49, 0x46, 0x38}, // GIF
		{0x25, 0x50, 0x44, 0x46}, // PDF
		{0x7F, 0x45, 0x4C, 0x46}, // ELF
		{0x4D, 0x5A},             // DOS/Windows executable
		{0xCA, 0xFE, 0xBA, 0xBE}, // Mach-O
		{0x77, 0x4F, 0x46, 0x46}, // WOFF
		{0x77, 0x4F, 0x46, 0x32}, // WOFF2
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	nullBytes := 0
	nonPrintable := 0
	for _, b := range sample {
		if b == 0 {
			nullBytes++
		}
		// bytes >= 0x80 may be UTF-8 and are not counted
		if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
			nonPrintable++
		}
	}

	if nullBytes > len(sample)/100 {
		return true
	}
	return nonPrintable > len(sample)*30/100
}

// IsBinary combines extension and content checks
func (bd *BinaryDetector) IsBinary(path string, content []byte) bool {
	if bd.IsBinaryByExtension(path) {
		return true
	}
	return bd.IsBinaryByMagicNumber(content)
}
