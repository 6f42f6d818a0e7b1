// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package recommend holds the core domain model of the recommendation
// service: the movie corpus, the dense cosine similarity matrix, the title
// index, and the query engine that serves similarity and genre lookups over
// a loaded dataset.
//
// The package depends on nothing but the logging layer. Dataset production
// lives in the pipeline subpackage; persistence lives in the bundle
// subpackage, which feeds the engine through the DatasetLoader interface.
package recommend
