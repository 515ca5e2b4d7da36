// Package infra contém o cliente HTTP do provedor de chat (DeepSeek, API
// compatível com OpenAI) que implementa domain.Upstream.
package infra
