// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package llm defines the provider abstraction the agent layer talks
// through: a chat request/response shape, a unified error code space, a
// response cache, and the roster executor that turns persona-addressed
// prompts into provider calls.
//
// LLM 适配层。统一的请求/响应模型、错误码、响应缓存与按角色分发的执行器。
package llm
