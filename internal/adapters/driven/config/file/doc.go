// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration in ~/.ragchat/config.toml
//   - PromptStore: user-editable prompt templates in ~/.ragchat/prompts
package file
