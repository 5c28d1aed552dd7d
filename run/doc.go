// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package run contains the execution machinery: bounded-duration agent
// calls, per-call retry and fallback recovery, and the round-based
// dependency scheduler that drives a parsed plan to completion.
//
// 执行层。超时执行器、重试与降级恢复、按轮次推进的依赖调度器。
package run
