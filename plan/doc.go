// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package plan 把 overseer 返回的自由文本解析为任务列表。
//
// Package plan extracts task lists from untrusted model output. A chain
// of strategies is tried in order, from strict JSON down to a line
// heuristic, and the package also builds the delegation and aggregation
// prompts that produce and consume that output.
package plan
