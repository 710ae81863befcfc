package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/conversation"
	"github.com/lonesomenomore/lsnm/internal/proxy"
)

type chatRequest struct {
	Messages         json.RawMessage `json:"messages"`
	Model            string          `json:"model"`
	SystemPrompt     string          `json:"systemPrompt"`
	SystemPromptFile string          `json:"systemPromptFile"`
	LovedOneID       string          `json:"lovedOneId"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: %v", err)
			return
		}

		userText, ok := composer.LastMessageContent(req.Messages)
		if !ok {
			httpError(w, http.StatusBadRequest, codeInvalidRequest, "messages must be a non-empty array whose last entry has string content")
			return
		}

		src := composer.Source{
			Inline:    req.SystemPrompt,
			File:      req.SystemPromptFile,
			ProfileID: req.LovedOneID,
		}
		prompt, err := deps.Resolver.Resolve(r.Context(), src)
		var cfgErr *composer.ConfigurationError
		if errors.As(err, &cfgErr) {
			httpError(w, http.StatusBadRequest, codeConfiguration, "could not read system prompt file %s: %v", cfgErr.Path, cfgErr.Err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "resolving system prompt: %v", err)
			return
		}

		messages, err := composer.Compose(req.Messages, prompt)
		if err != nil {
			httpError(w, http.StatusBadRequest, codeInvalidRequest, "%v", err)
			return
		}

		lovedOneID := req.LovedOneID
		if lovedOneID == "" {
			lovedOneID = deps.DefaultLovedOneID
		}
		convID, err := deps.Recorder.Start(r.Context(), lovedOneID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}
		if _, err := deps.Recorder.Record(r.Context(), convID, conversation.RoleUser, userText); err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}

		model := req.Model
		if model == "" {
			model = deps.DefaultModel
		}
		resp, err := deps.Proxy.Complete(r.Context(), proxy.ChatRequest{Model: model, Messages: messages})
		if err != nil {
			deps.Logger.Warn("chat completion failed", "conversation", convID, "model", model, "error", err)
			httpError(w, http.StatusBadGateway, codeUpstream, "%v", err)
			return
		}
		reply := resp.Choices[0].Message

		if _, err := deps.Recorder.Record(r.Context(), convID, conversation.RoleAssistant, reply.Content); err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}
		if err := deps.Recorder.Finish(r.Context(), convID, userText, "positive"); err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}

		deps.Logger.Debug("chat exchange recorded",
			"conversation", convID,
			"loved_one", lovedOneID,
			"prompt_source", deps.Resolver.Describe(src),
			"prompt_chars", len(prompt),
		)

		writeJSON(w, http.StatusOK, map[string]any{
			"success":            true,
			"message":            reply,
			"conversationId":     convID,
			"usage":              resp.Usage,
			"systemPromptSource": deps.Resolver.Describe(src),
		})
	}
}

func handleModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := deps.Proxy.ListModels(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, codeUpstream, "failed to list models: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "models": models})
	}
}
