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
	"bytes"
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/gorse-io/toprec/base"
	"github.com/gorse-io/toprec/dataset"
	"github.com/stretchr/testify/assert"
)

func newDataset(ratings dataset.Ratings) *dataset.Dataset {
	return dataset.NewDataset(ratings)
}

// randomRatings generates ratings of nUsers users on nItems items. Each user rates
// between 1 and maxRated items.
func randomRatings(seed int64, nUsers, nItems, maxRated int) dataset.Ratings {
	rng := base.NewRandomGenerator(seed)
	ratings := make(dataset.Ratings)
	for u := 0; u < nUsers; u++ {
		userId := fmt.Sprintf("u%03d", u)
		for _, itemIndex := range rng.SampleInt32(0, int32(nItems), 1+rng.Intn(maxRated)) {
			_ = ratings.Add(userId, fmt.Sprintf("i%03d", itemIndex), 1+rng.Intn(5))
		}
	}
	return ratings
}

func itemIndex(t *testing.T, d *dataset.Dataset, itemId string) int32 {
	index, ok := d.ItemIndex(itemId)
	assert.True(t, ok, itemId)
	return index
}

func userIndex(t *testing.T, d *dataset.Dataset, userId string) int32 {
	index, ok := d.UserIndex(userId)
	assert.True(t, ok, userId)
	return index
}

func TestComputeSimilarity_ItemMode(t *testing.T) {
	trainSet := newDataset(dataset.Ratings{
		"u1": {"i1": 5, "i2": 3},
		"u2": {"i1": 4, "i3": 2},
	})
	similarity, popularity, err := ComputeSimilarity(context.Background(), trainSet, ItemMode, false, 1)
	assert.NoError(t, err)
	i1, i2, i3 := itemIndex(t, trainSet, "i1"), itemIndex(t, trainSet, "i2"), itemIndex(t, trainSet, "i3")
	assert.InDelta(t, 1/math.Sqrt(2), similarity.Similarity(i1, i2), 1e-6)
	assert.InDelta(t, 1/math.Sqrt(2), similarity.Similarity(i1, i3), 1e-6)
	assert.Zero(t, similarity.Similarity(i2, i3))
	assert.Zero(t, similarity.Similarity(i1, i1))
	assert.Equal(t, 3, similarity.Count())
	// equal similarities are ordered by index
	assert.Equal(t, []Neighbor{
		{Index: i2, Similarity: similarity.Similarity(i1, i2)},
		{Index: i3, Similarity: similarity.Similarity(i1, i3)},
	}, similarity.Neighbors(i1, 0))
	assert.Len(t, similarity.Neighbors(i1, 1), 1)
	assert.Len(t, similarity.Neighbors(i2, 10), 1)
	assert.Nil(t, similarity.Neighbors(100, 10))
	// popularity
	assert.Equal(t, 2, popularity.Get("i1"))
	assert.Equal(t, 1, popularity.Get("i2"))
	assert.Equal(t, 0, popularity.Get("i4"))
	assert.Equal(t, 3, popularity.Count())
}

func TestComputeSimilarity_UserMode(t *testing.T) {
	trainSet := newDataset(dataset.Ratings{
		"u1": {"i1": 5, "i2": 3},
		"u2": {"i1": 4, "i3": 2},
		"u3": {"i4": 1},
	})
	similarity, _, err := ComputeSimilarity(context.Background(), trainSet, UserMode, false, 1)
	assert.NoError(t, err)
	u1, u2, u3 := userIndex(t, trainSet, "u1"), userIndex(t, trainSet, "u2"), userIndex(t, trainSet, "u3")
	assert.InDelta(t, 0.5, similarity.Similarity(u1, u2), 1e-6)
	assert.Zero(t, similarity.Similarity(u1, u3))
	// users without co-occurrence have empty rows
	assert.Empty(t, similarity.Neighbors(u3, 0))
}

func TestComputeSimilarity_Discount(t *testing.T) {
	trainSet := newDataset(dataset.Ratings{
		"u1": {"i1": 5, "i2": 3},
		"u2": {"i1": 4, "i3": 2},
	})
	similarity, _, err := ComputeSimilarity(context.Background(), trainSet, ItemMode, true, 1)
	assert.NoError(t, err)
	i1, i2 := itemIndex(t, trainSet, "i1"), itemIndex(t, trainSet, "i2")
	assert.InDelta(t, 1/math.Log(3)/math.Sqrt(2), similarity.Similarity(i1, i2), 1e-5)

	similarity, _, err = ComputeSimilarity(context.Background(), trainSet, UserMode, true, 1)
	assert.NoError(t, err)
	u1, u2 := userIndex(t, trainSet, "u1"), userIndex(t, trainSet, "u2")
	assert.InDelta(t, 1/math.Log(3)/2, similarity.Similarity(u1, u2), 1e-5)
}

func TestComputeSimilarity_Symmetric(t *testing.T) {
	trainSet := newDataset(randomRatings(1, 50, 40, 10))
	for _, mode := range []Mode{UserMode, ItemMode} {
		for _, discount := range []bool{false, true} {
			similarity, _, err := ComputeSimilarity(context.Background(), trainSet, mode, discount, 4)
			assert.NoError(t, err)
			for a := int32(0); int(a) < similarity.Count(); a++ {
				for _, neighbor := range similarity.Neighbors(a, 0) {
					assert.NotEqual(t, a, neighbor.Index)
					assert.Positive(t, neighbor.Similarity)
					assert.LessOrEqual(t, neighbor.Similarity, float32(1)+1e-6)
					assert.Equal(t, neighbor.Similarity, similarity.Similarity(neighbor.Index, a))
				}
			}
		}
	}
}

func TestComputeSimilarity_Idempotent(t *testing.T) {
	trainSet := newDataset(randomRatings(2, 50, 40, 10))
	first, _, err := ComputeSimilarity(context.Background(), trainSet, ItemMode, true, 1)
	assert.NoError(t, err)
	second, _, err := ComputeSimilarity(context.Background(), trainSet, ItemMode, true, 1)
	assert.NoError(t, err)
	parallel, _, err := ComputeSimilarity(context.Background(), trainSet, ItemMode, true, 8)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first, parallel)
}

func TestComputeSimilarity_Canceled(t *testing.T) {
	trainSet := newDataset(randomRatings(3, 10, 10, 5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ComputeSimilarity(ctx, trainSet, UserMode, false, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = ComputeSimilarity(context.Background(), trainSet, Mode(9), false, 1)
	assert.Error(t, err)
}

func TestSimilarityMatrix_Marshal(t *testing.T) {
	trainSet := newDataset(randomRatings(4, 20, 20, 5))
	similarity, _, err := ComputeSimilarity(context.Background(), trainSet, UserMode, false, 1)
	assert.NoError(t, err)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, similarity.Marshal(buf))
	var decoded SimilarityMatrix
	assert.NoError(t, decoded.Unmarshal(buf))
	assert.Equal(t, similarity.Count(), decoded.Count())
	for a := int32(0); int(a) < similarity.Count(); a++ {
		assert.ElementsMatch(t, similarity.Neighbors(a, 0), decoded.Neighbors(a, 0))
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "user", UserMode.String())
	assert.Equal(t, "item", ItemMode.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
