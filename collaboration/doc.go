// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package collaboration is the entry point of the orchestration core: one
// user request in, one structured outcome out. The overseer plans, the
// scheduler runs the plan, the overseer summarizes; every failure along
// the way degrades to a structured partial result instead of an error
// escaping to the caller.
package collaboration
