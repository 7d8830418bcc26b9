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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/toprec/base"
	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/dataset"
	"github.com/gorse-io/toprec/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Popular recommends the most popular items the user has not rated.
type Popular struct {
	BaseRecommender
}

func NewPopular(params model.Params) *Popular {
	m := new(Popular)
	m.SetParams(params)
	return m
}

func (m *Popular) Fit(_ context.Context, trainSet *dataset.Dataset, _ *FitConfig) error {
	log.Logger().Info("fit most popular",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()))
	m.Init(trainSet)
	return nil
}

func (m *Popular) Recommend(userId string, n int) ([]Recommendation, error) {
	if m.Invalid() {
		return nil, errors.Trace(ErrNotFitted)
	}
	userIndex, ok := m.lookupUser(userId)
	if !ok {
		return nil, nil
	}
	popularity := m.TrainSet.Popularity()
	scores := make(map[int32]float32)
	for itemIndex := int32(0); int(itemIndex) < m.TrainSet.CountItems(); itemIndex++ {
		if !m.TrainSet.Rated(userIndex, itemIndex) {
			scores[itemIndex] = float32(popularity.GetIndex(itemIndex))
		}
	}
	return m.topN(scores, n), nil
}

// maxRejections bounds rejection sampling per requested item before falling back to
// enumeration of unrated items.
const maxRejections = 32

// Random recommends unrated items drawn uniformly at random. Every recommendation has
// score zero.
type Random struct {
	BaseRecommender
	mu sync.Mutex
}

func NewRandom(params model.Params) *Random {
	m := new(Random)
	m.SetParams(params)
	return m
}

func (m *Random) Fit(_ context.Context, trainSet *dataset.Dataset, _ *FitConfig) error {
	log.Logger().Info("fit random",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()))
	m.ResetRandomGenerator()
	m.Init(trainSet)
	return nil
}

// Recommend draws n distinct unrated items. It fails with ErrInsufficientItems if the
// user has fewer than n unrated items.
func (m *Random) Recommend(userId string, n int) ([]Recommendation, error) {
	if m.Invalid() {
		return nil, errors.Trace(ErrNotFitted)
	}
	userIndex, ok := m.lookupUser(userId)
	if !ok {
		return nil, nil
	}
	if n <= 0 {
		return []Recommendation{}, nil
	}
	feedback := m.TrainSet.GetUserFeedback()[userIndex]
	nItems := m.TrainSet.CountItems()
	if n > nItems-len(feedback) {
		return nil, errors.Annotatef(ErrInsufficientItems, "%d items requested, %d unrated items", n, nItems-len(feedback))
	}
	watched := mapset.NewThreadUnsafeSet[int32](feedback...)

	// the generator is shared by concurrent callers
	m.mu.Lock()
	rng := m.GetRandomGenerator()
	sampled := m.sample(rng, int32(nItems), n, watched)
	m.mu.Unlock()

	recommendations := make([]Recommendation, len(sampled))
	for i, itemIndex := range sampled {
		recommendations[i] = Recommendation{ItemId: m.TrainSet.ItemId(itemIndex)}
	}
	return recommendations, nil
}

func (m *Random) sample(rng base.RandomGenerator, nItems int32, n int, watched mapset.Set[int32]) []int32 {
	available := int(nItems) - watched.Cardinality()
	if n < available {
		sampled := make([]int32, 0, n)
		picked := mapset.NewThreadUnsafeSet[int32]()
		for attempt := 0; attempt < n*maxRejections && len(sampled) < n; attempt++ {
			itemIndex := rng.Int31n(nItems)
			if watched.Contains(itemIndex) || picked.Contains(itemIndex) {
				continue
			}
			sampled = append(sampled, itemIndex)
			picked.Add(itemIndex)
		}
		if len(sampled) == n {
			return sampled
		}
		log.Logger().Debug("rejection sampling exhausted, enumerate unrated items",
			zap.Int("n", n), zap.Int("n_available", available))
	}
	// enumerate and shuffle
	sampled := rng.SampleInt32(0, nItems, available, watched)
	return sampled[:n]
}
