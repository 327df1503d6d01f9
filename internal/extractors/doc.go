// Package extractors turns uploaded file bytes into ordered text segments.
//
// Each supported format has its own extractor package. Extractors are
// registered with the Registry at startup and selected by format tag.
package extractors
