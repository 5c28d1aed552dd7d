// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package tasktree provides the hierarchical task model: nodes own child
// subtasks and may additionally declare cross-cutting dependencies on any
// other node in the same tree. A flat plan is the degenerate case of a
// single level under the root.
package tasktree
