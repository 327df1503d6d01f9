package driven

// PromptAnswer is the template that grounds an answer in retrieved excerpts.
// It is filled with fmt.Sprintf(template, contextBlocks, question).
const PromptAnswer = "answer"

// PromptStore returns prompt templates by name.
type PromptStore interface {
	Load(name string) (string, error)

	// Reload forgets cached templates so the next Load reads them again.
	Reload()
}
