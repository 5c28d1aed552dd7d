// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

/*
Package agent 定义 CrewFlow 的角色表与执行能力抽象。

# 概述

agent 包描述"谁能干活"。每个 Persona 是一个具名角色（名字、职责、
专长、能力标签），Roster 把角色表和 专长 → 候补角色 的静态回退表
合并为一个只读查询结构。Board 记录每个角色当前是否空闲，供调度与
看板使用。

# 核心类型

  - Persona       — 静态角色定义，可渲染为 system prompt
  - Roster        — 只读角色表 + 回退表，首个角色为 overseer
  - Board         — 每角色 idle/busy 状态板，并发安全
  - Executor      — 编排核心消费的执行能力: (agent, prompt) → 文本
  - ExecutorFunc  — 函数到 Executor 的适配器

# 主要能力

  - DefaultRoster 提供内置 23 人角色表与回退表
  - LoadRoster 从 YAML 文件加载自定义角色表
  - FallbackFor 返回某专长的候补角色序列（不含主角色）
*/
package agent
