package evaluator

import (
	_ "embed"
)

// DefaultMaxTokens bounds the verdict reply when none is configured.
const DefaultMaxTokens = 4096

// SystemPrompt is the system-level instruction for the LLM evaluator.
//
//go:embed prompts/system.md
var SystemPrompt string

// UserPromptTemplate precedes the pane content in the user message.
//
//go:embed prompts/user.md
var UserPromptTemplate string
