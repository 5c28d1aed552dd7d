// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package persistence 提供编排运行历史的 sqlite 持久化。
//
// Package persistence stores finished orchestration runs in sqlite via
// GORM so past outcomes can be reloaded and inspected.
package persistence
