package domain

// RawDocument is an upload as received by the ingestion entry point.
type RawDocument struct {
	// Filename is the client supplied file name.
	Filename string

	// Format is the declared format tag.
	Format Format

	// Content is the raw bytes.
	Content []byte
}
