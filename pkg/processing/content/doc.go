// Package content normalizes chat message content. Some OpenAI-compatible
// backends reject the array form of "content" used by multimodal clients,
// so the gateway can flatten it to a single string before dispatch.
package content
