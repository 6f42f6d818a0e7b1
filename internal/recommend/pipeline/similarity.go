// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package pipeline

import (
	"runtime"
	"sync"

	"github.com/reelmatch/reelmatch/internal/recommend"
)

// BuildSimilarityMatrix computes the dense pairwise cosine similarity matrix
// over L2-normalized TF-IDF rows. The result is symmetric, every entry is
// clamped to [0, 1], and the diagonal is exactly 1.0 regardless of vector
// content, so even an all-zero row reports full self-similarity.
//
// Rows are computed in parallel; only the upper triangle is dotted and the
// result mirrored.
func BuildSimilarityMatrix(rows []SparseVector) *recommend.Matrix {
	n := len(rows)
	m := recommend.NewMatrix(n)

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	work := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				m.Set(i, i, 1.0)
				for j := i + 1; j < n; j++ {
					s := rows[i].Dot(rows[j])
					if s < 0 {
						s = 0
					} else if s > 1 {
						s = 1
					}
					m.Set(i, j, s)
					m.Set(j, i, s)
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	return m
}
