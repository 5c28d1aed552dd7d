// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 CrewFlow 命令行程序入口。

# 概述

cmd/crewflow 是 CrewFlow 编排框架的可执行入口。run 子命令把一条用户
请求交给编排器跑完整个 计划 → 解析 → 调度 → 汇总 流程并输出 JSON 结果；
history 子命令回查 sqlite 中持久化的历史运行。

# 主要能力

  - 子命令：run（执行一次编排）、history（运行历史）、version、help
  - run --tree / --dot：按任务终态重建依赖树并以 ASCII 或 Graphviz 输出
  - 信号处理：SIGINT / SIGTERM 取消进行中的运行
  - 构建注入：Version、GitCommit 通过 ldflags 设置
*/
package main
