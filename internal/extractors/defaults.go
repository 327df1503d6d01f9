package extractors

import (
	"github.com/custodia-labs/docqa/internal/extractors/docx"
	"github.com/custodia-labs/docqa/internal/extractors/pdf"
	"github.com/custodia-labs/docqa/internal/extractors/xlsx"
)

// Default returns a registry with all built-in extractors.
func Default() *Registry {
	return NewRegistry(pdf.New(), docx.New(), xlsx.New())
}
