// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package pipeline implements the offline index build: source loading, text
// cleaning and analysis, TF-IDF vectorization, and pairwise cosine
// similarity. The build is deterministic for a given input and
// configuration; the online query path never recomputes any of it.
package pipeline
