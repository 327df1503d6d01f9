// Package domain holds the document pipeline's entities and error taxonomy.
//
// A Document moves pending -> processing -> ready or failed. Extraction
// yields Segments that keep their page or sheet; the chunker packs them into
// token-window Chunks, which are embedded and indexed. An Answer carries the
// generated text and the Citations it was grounded on.
//
// Only the standard library may be imported here.
package domain
