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
	"math"
	"testing"

	"github.com/gorse-io/toprec/dataset"
	"github.com/gorse-io/toprec/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

var knnRatings = dataset.Ratings{
	"u1": {"i1": 5, "i2": 3},
	"u2": {"i1": 4, "i3": 2},
	"u3": {"i2": 1, "i4": 5},
}

func itemIds(recommendations []Recommendation) []string {
	return lo.Map(recommendations, func(r Recommendation, _ int) string {
		return r.ItemId
	})
}

func TestUserBasedCF(t *testing.T) {
	trainSet := newDataset(knnRatings)

	// binary scores tie and fall back to item order
	m := NewUserBasedCF(nil)
	assert.True(t, m.Invalid())
	_, err := m.Recommend("u1", 10)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.NoError(t, m.Fit(context.Background(), trainSet, nil))
	assert.False(t, m.Invalid())
	recommendations, err := m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []Recommendation{{"i3", 0.5}, {"i4", 0.5}}, recommendations)

	// rating-weighted scores
	m = NewUserBasedCF(model.Params{model.UseRating: true})
	assert.NoError(t, m.Fit(context.Background(), trainSet, NewFitConfig()))
	recommendations, err = m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []Recommendation{{"i4", 2.5}, {"i3", 1}}, recommendations)
	recommendations, err = m.Recommend("u1", 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i4"}, itemIds(recommendations))

	// one neighbor
	m = NewUserBasedCF(model.Params{model.NNeighbors: 1})
	assert.NoError(t, m.Fit(context.Background(), trainSet, nil))
	recommendations, err = m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i3"}, itemIds(recommendations))

	// unknown user
	recommendations, err = m.Recommend("u9", 10)
	assert.NoError(t, err)
	assert.Nil(t, recommendations)

	m.Clear()
	assert.True(t, m.Invalid())
}

func TestUserBasedCF_SumNeighbors(t *testing.T) {
	// i3 is rated by both neighbors of u1
	trainSet := newDataset(dataset.Ratings{
		"u1": {"i1": 1, "i2": 1},
		"u2": {"i1": 1, "i3": 1},
		"u3": {"i2": 1, "i3": 1},
		"u4": {"i1": 1, "i4": 1},
	})
	m := NewUserBasedCF(nil)
	assert.NoError(t, m.Fit(context.Background(), trainSet, nil))
	u1 := userIndex(t, trainSet, "u1")
	sim := m.Similarity.Similarity
	recommendations, err := m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i3", "i4"}, itemIds(recommendations))
	assert.InDelta(t,
		sim(u1, userIndex(t, trainSet, "u2"))+sim(u1, userIndex(t, trainSet, "u3")),
		recommendations[0].Score, 1e-6)
}

func TestItemBasedCF(t *testing.T) {
	trainSet := newDataset(knnRatings)
	m := NewItemBasedCF(nil)
	_, err := m.Recommend("u1", 10)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.NoError(t, m.Fit(context.Background(), trainSet, nil))
	recommendations, err := m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i3", "i4"}, itemIds(recommendations))
	assert.InDelta(t, 5/math.Sqrt(2), recommendations[0].Score, 1e-5)
	assert.InDelta(t, 3/math.Sqrt(2), recommendations[1].Score, 1e-5)

	// binary scores
	m = NewItemBasedCF(model.Params{model.UseRating: false})
	assert.NoError(t, m.Fit(context.Background(), trainSet, nil))
	recommendations, err = m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i3", "i4"}, itemIds(recommendations))
	assert.Equal(t, recommendations[0].Score, recommendations[1].Score)

	// unknown user
	recommendations, err = m.Recommend("u9", 10)
	assert.NoError(t, err)
	assert.Nil(t, recommendations)

	m.Clear()
	assert.True(t, m.Invalid())
}

func TestItemBasedCF_PerSourceCap(t *testing.T) {
	// i3 is a neighbor of both i1 and i2, so it collects two contributions
	trainSet := newDataset(dataset.Ratings{
		"u1": {"i1": 1, "i2": 1},
		"u2": {"i1": 1, "i3": 1},
		"u3": {"i2": 1, "i3": 1},
	})
	m := NewItemBasedCF(model.Params{model.NNeighbors: 2, model.UseRating: false})
	assert.NoError(t, m.Fit(context.Background(), trainSet, nil))
	i1, i2, i3 := itemIndex(t, trainSet, "i1"), itemIndex(t, trainSet, "i2"), itemIndex(t, trainSet, "i3")
	recommendations, err := m.Recommend("u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i3"}, itemIds(recommendations))
	assert.InDelta(t, m.Similarity.Similarity(i1, i3)+m.Similarity.Similarity(i2, i3), recommendations[0].Score, 1e-6)
}
