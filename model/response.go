//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package model

// Response is a completed backend reply.
type Response struct {
	// Message is the decoded assistant message.
	Message Message `json:"message"`
	// Model is the backend model name that produced the reply.
	Model string `json:"model,omitempty"`
	// FinishReason is the reason generation stopped, when reported:
	// "stop", "length", "content_filter", etc.
	FinishReason string `json:"finish_reason,omitempty"`
}

// Text returns the decoded assistant text.
func (r *Response) Text() string {
	text, _ := r.Message.Text()
	return text
}
