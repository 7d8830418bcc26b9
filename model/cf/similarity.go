// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cf

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/toprec/base/encoding"
	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/base/parallel"
	"github.com/gorse-io/toprec/base/progress"
	"github.com/gorse-io/toprec/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const logStep = 1000

// Mode selects the entity axis of a similarity matrix.
type Mode int

const (
	// UserMode computes user-user similarity. Users are connected by shared items.
	UserMode Mode = iota
	// ItemMode computes item-item similarity. Items are connected by shared users.
	ItemMode
)

func (m Mode) String() string {
	switch m {
	case UserMode:
		return "user"
	case ItemMode:
		return "item"
	default:
		return "unknown"
	}
}

type Neighbor struct {
	Index      int32
	Similarity float32
}

// SimilarityMatrix stores, per entity, the entities sharing at least one co-occurrence.
// Rows are sorted by descending similarity and then by ascending index. Self pairs are
// never stored.
type SimilarityMatrix struct {
	rows [][]Neighbor
}

func (m *SimilarityMatrix) Count() int {
	return len(m.rows)
}

// Neighbors returns the k most similar entities of a. All neighbors are returned if k <= 0.
func (m *SimilarityMatrix) Neighbors(a int32, k int) []Neighbor {
	if int(a) >= len(m.rows) || a < 0 {
		return nil
	}
	row := m.rows[a]
	if k > 0 && k < len(row) {
		return row[:k]
	}
	return row
}

// Similarity returns the similarity between a and b, zero if they never co-occur.
func (m *SimilarityMatrix) Similarity(a, b int32) float32 {
	for _, neighbor := range m.Neighbors(a, 0) {
		if neighbor.Index == b {
			return neighbor.Similarity
		}
	}
	return 0
}

func (m *SimilarityMatrix) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, m.rows)
}

func (m *SimilarityMatrix) Unmarshal(r io.Reader) error {
	return encoding.ReadGob(r, &m.rows)
}

// ComputeSimilarity builds a cosine similarity matrix over co-occurrence counts. In user
// mode two users co-occur in every item both rated, in item mode two items co-occur in
// every user who rated both. With discount, each co-occurrence is weighted by
// 1/ln(1+|group|) so that popular connectors contribute less.
func ComputeSimilarity(ctx context.Context, trainSet *dataset.Dataset, mode Mode, discount bool, jobs int) (*SimilarityMatrix, *dataset.Popularity, error) {
	var groups, adjacency [][]int32
	switch mode {
	case UserMode:
		groups, adjacency = trainSet.GetItemFeedback(), trainSet.GetUserFeedback()
	case ItemMode:
		groups, adjacency = trainSet.GetUserFeedback(), trainSet.GetItemFeedback()
	default:
		return nil, nil, errors.NotValidf("similarity mode %d", mode)
	}
	start := time.Now()
	_, span := progress.Start(ctx, "ComputeSimilarity", len(groups))
	defer span.End()

	// accumulate co-occurrence weights
	weights := make([]map[int32]float32, len(adjacency))
	for i := range weights {
		weights[i] = make(map[int32]float32)
	}
	for groupIndex, group := range groups {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return nil, nil, errors.Trace(err)
		}
		var w float32 = 1
		if discount {
			w = 1 / math32.Log1p(float32(len(group)))
		}
		for _, a := range group {
			row := weights[a]
			for _, b := range group {
				if a != b {
					row[b] += w
				}
			}
		}
		span.Add(1)
		if (groupIndex+1)%logStep == 0 {
			log.Logger().Debug("accumulate co-occurrence",
				zap.String("mode", mode.String()),
				zap.Int("n_complete", groupIndex+1),
				zap.Int("n_groups", len(groups)))
		}
	}

	// normalize and sort rows
	rows := make([][]Neighbor, len(adjacency))
	err := parallel.BatchParallel(len(adjacency), jobs, 128, func(_, begin, end int) error {
		for a := begin; a < end; a++ {
			row := make([]Neighbor, 0, len(weights[a]))
			degA := len(adjacency[a])
			for b, w := range weights[a] {
				degB := len(adjacency[b])
				row = append(row, Neighbor{
					Index:      b,
					Similarity: w / math32.Sqrt(float32(degA)*float32(degB)),
				})
			}
			sort.Slice(row, func(i, j int) bool {
				if row[i].Similarity != row[j].Similarity {
					return row[i].Similarity > row[j].Similarity
				}
				return row[i].Index < row[j].Index
			})
			rows[a] = row
		}
		return nil
	})
	if err != nil {
		span.Fail(err)
		return nil, nil, errors.Trace(err)
	}
	log.Logger().Info("complete computing similarity",
		zap.String("mode", mode.String()),
		zap.Bool("discount", discount),
		zap.Int("n_entities", len(rows)),
		zap.Duration("duration", time.Since(start)))
	return &SimilarityMatrix{rows: rows}, trainSet.Popularity(), nil
}
