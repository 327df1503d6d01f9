package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a supported document file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
)

// Formats lists every format the pipeline accepts.
var Formats = []Format{FormatPDF, FormatDOCX, FormatXLSX}

// ParseFormat maps a format tag (case-insensitive, leading dot allowed) to a Format.
func ParseFormat(tag string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", &UnsupportedFormatError{Format: tag}
}

// FormatFromFilename derives the Format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", &UnsupportedFormatError{Format: name}
	}
	return ParseFormat(ext)
}

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	// StatusPending means uploaded and waiting for a worker.
	StatusPending DocumentStatus = "pending"
	// StatusProcessing means extraction through indexing is underway.
	StatusProcessing DocumentStatus = "processing"
	// StatusReady means all chunks are indexed and searchable.
	StatusReady DocumentStatus = "ready"
	// StatusFailed is terminal and carries an error message.
	StatusFailed DocumentStatus = "failed"
)

// IsTerminal reports whether no further transition can happen in this attempt.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Transitions are pending -> processing -> ready|failed. A pending document
// may also fail directly when it cannot be scheduled.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusReady || next == StatusFailed
	default:
		return false
	}
}

// Document is the metadata record of an uploaded file.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the name the file was uploaded with.
	Filename string

	// Format is the declared file format.
	Format Format

	// Status is the current lifecycle state.
	Status DocumentStatus

	// SizeBytes is the length of the raw upload.
	SizeBytes int64

	// ChunkCount is the number of indexed chunks once ready.
	ChunkCount int

	// Error holds the failure message when Status is failed.
	Error string

	// UploadedAt is when the document was accepted.
	UploadedAt time.Time

	// ProcessedAt is when the last attempt finished.
	ProcessedAt *time.Time
}

// StatusReport is the polling view of a document.
type StatusReport struct {
	ID         string
	Status     DocumentStatus
	ChunkCount int
	Error      string
}

// Report returns the polling view of the document.
func (d *Document) Report() StatusReport {
	return StatusReport{
		ID:         d.ID,
		Status:     d.Status,
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
	}
}
