// Copyright (c) CrewFlow Authors.
// Licensed under the MIT License.

// Package config 提供 CrewFlow 的配置加载。
//
// Package config loads CrewFlow configuration from defaults, an
// optional YAML file, and environment variable overrides, in that
// order of precedence.
package config
