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

	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/dataset"
	"github.com/gorse-io/toprec/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// UserBasedCF recommends items rated by the most similar users.
//
//	NNeighbors - number of similar users consulted (default 20)
//	Discount   - weight co-occurrence by inverse item frequency (default false)
//	UseRating  - weight neighbor items by neighbor ratings (default false)
type UserBasedCF struct {
	BaseRecommender
	Similarity *SimilarityMatrix
	// Hyper-parameters
	nNeighbors int
	discount   bool
	useRating  bool
}

func NewUserBasedCF(params model.Params) *UserBasedCF {
	m := new(UserBasedCF)
	m.SetParams(params)
	return m
}

func (m *UserBasedCF) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nNeighbors = m.Params.GetInt(model.NNeighbors, 20)
	m.discount = m.Params.GetBool(model.Discount, false)
	m.useRating = m.Params.GetBool(model.UseRating, false)
}

func (m *UserBasedCF) Clear() {
	m.BaseRecommender.Clear()
	m.Similarity = nil
}

func (m *UserBasedCF) Invalid() bool {
	return m == nil || m.BaseRecommender.Invalid() || m.Similarity == nil
}

func (m *UserBasedCF) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit user-based CF",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_neighbors", m.nNeighbors),
		zap.Bool("discount", m.discount),
		zap.Bool("use_rating", m.useRating))
	similarity, _, err := ComputeSimilarity(ctx, trainSet, UserMode, m.discount, config.Jobs)
	if err != nil {
		return errors.Trace(err)
	}
	m.Init(trainSet)
	m.Similarity = similarity
	return nil
}

// Recommend scores each item unrated by the user with the sum, over the nearest users
// who rated it, of their similarity (optionally multiplied by their rating).
func (m *UserBasedCF) Recommend(userId string, n int) ([]Recommendation, error) {
	if m.Invalid() {
		return nil, errors.Trace(ErrNotFitted)
	}
	userIndex, ok := m.lookupUser(userId)
	if !ok {
		return nil, nil
	}
	userFeedback := m.TrainSet.GetUserFeedback()
	userRatings := m.TrainSet.GetUserRatings()
	scores := make(map[int32]float32)
	for _, neighbor := range m.Similarity.Neighbors(userIndex, m.nNeighbors) {
		for i, itemIndex := range userFeedback[neighbor.Index] {
			if m.TrainSet.Rated(userIndex, itemIndex) {
				continue
			}
			if m.useRating {
				scores[itemIndex] += neighbor.Similarity * float32(userRatings[neighbor.Index][i])
			} else {
				scores[itemIndex] += neighbor.Similarity
			}
		}
	}
	return m.topN(scores, n), nil
}

func (m *UserBasedCF) Marshal(w io.Writer) error {
	if err := m.BaseRecommender.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.Similarity.Marshal(w))
}

func (m *UserBasedCF) Unmarshal(r io.Reader) error {
	if err := m.BaseRecommender.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(m.Params)
	m.Similarity = &SimilarityMatrix{}
	return errors.Trace(m.Similarity.Unmarshal(r))
}

// ItemBasedCF recommends items similar to the items rated by the user.
//
//	NNeighbors - number of similar items consulted per rated item (default 20)
//	Discount   - weight co-occurrence by inverse user frequency (default false)
//	UseRating  - weight similar items by the user's rating (default true)
type ItemBasedCF struct {
	BaseRecommender
	Similarity *SimilarityMatrix
	// Hyper-parameters
	nNeighbors int
	discount   bool
	useRating  bool
}

func NewItemBasedCF(params model.Params) *ItemBasedCF {
	m := new(ItemBasedCF)
	m.SetParams(params)
	return m
}

func (m *ItemBasedCF) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nNeighbors = m.Params.GetInt(model.NNeighbors, 20)
	m.discount = m.Params.GetBool(model.Discount, false)
	m.useRating = m.Params.GetBool(model.UseRating, true)
}

func (m *ItemBasedCF) Clear() {
	m.BaseRecommender.Clear()
	m.Similarity = nil
}

func (m *ItemBasedCF) Invalid() bool {
	return m == nil || m.BaseRecommender.Invalid() || m.Similarity == nil
}

func (m *ItemBasedCF) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit item-based CF",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_neighbors", m.nNeighbors),
		zap.Bool("discount", m.discount),
		zap.Bool("use_rating", m.useRating))
	similarity, _, err := ComputeSimilarity(ctx, trainSet, ItemMode, m.discount, config.Jobs)
	if err != nil {
		return errors.Trace(err)
	}
	m.Init(trainSet)
	m.Similarity = similarity
	return nil
}

// Recommend scores each candidate with the sum of its similarity to the rated items
// whose nearest neighbors include it. The neighbor cap applies per rated item, so a
// candidate may receive contributions from many rated items.
func (m *ItemBasedCF) Recommend(userId string, n int) ([]Recommendation, error) {
	if m.Invalid() {
		return nil, errors.Trace(ErrNotFitted)
	}
	userIndex, ok := m.lookupUser(userId)
	if !ok {
		return nil, nil
	}
	ratings := m.TrainSet.GetUserRatings()[userIndex]
	scores := make(map[int32]float32)
	for i, itemIndex := range m.TrainSet.GetUserFeedback()[userIndex] {
		for _, neighbor := range m.Similarity.Neighbors(itemIndex, m.nNeighbors) {
			if m.TrainSet.Rated(userIndex, neighbor.Index) {
				continue
			}
			if m.useRating {
				scores[neighbor.Index] += neighbor.Similarity * float32(ratings[i])
			} else {
				scores[neighbor.Index] += neighbor.Similarity
			}
		}
	}
	return m.topN(scores, n), nil
}

func (m *ItemBasedCF) Marshal(w io.Writer) error {
	if err := m.BaseRecommender.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.Similarity.Marshal(w))
}

func (m *ItemBasedCF) Unmarshal(r io.Reader) error {
	if err := m.BaseRecommender.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(m.Params)
	m.Similarity = &SimilarityMatrix{}
	return errors.Trace(m.Similarity.Unmarshal(r))
}
