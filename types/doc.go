// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 CrewFlow 框架的全局共享类型定义。

# 概述

types 是框架最底层的公共包，不依赖任何内部包，为 agent、plan、run、
tasktree、collaboration 等上层模块提供统一的类型契约。所有跨包共享的
结构体、枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Task / TaskStatus — 扁平调度单元及其状态机（pending → running → 终态）
  - BlockReason       — 调度结束后仍未就绪任务的阻塞原因
  - Error / ErrorCode — 结构化错误体系，含 Retryable 标记与底层 Cause

# 主要能力

  - 状态机保护：Task.Transition 只允许单向前进，终态不可复活
  - 错误工具链：NewError / WithCause / IsErrorCode / IsRetryable
*/
package types
