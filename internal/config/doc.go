// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package config loads layered configuration for the indexer and the API
// server: built-in defaults, then an optional YAML file, then environment
// variables. Environment variables always win, so a containerized
// deployment can override any file-provided setting.
package config
