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

package dataset

import (
	"github.com/gorse-io/toprec/base"
	"github.com/gorse-io/toprec/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Split assigns each rating to the test partition with probability testRatio, otherwise to
// the train partition. The assignment only depends on the seed and the order of ratings.
func Split(ratings []Rating, testRatio float64, seed int64) (Ratings, Ratings, error) {
	if testRatio < 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	rng := base.NewRandomGenerator(seed)
	trainSet, testSet := make(Ratings), make(Ratings)
	for _, rating := range ratings {
		target, other := trainSet, testSet
		if rng.Float64() < testRatio {
			target, other = testSet, trainSet
		}
		if _, exist := other.Get(rating.UserId, rating.ItemId); exist {
			return nil, nil, errors.AlreadyExistsf("rating (%s, %s)", rating.UserId, rating.ItemId)
		}
		if err := target.Add(rating.UserId, rating.ItemId, rating.Rating); err != nil {
			return nil, nil, errors.Trace(err)
		}
	}
	log.Logger().Info("split dataset",
		zap.Int("n_train_ratings", trainSet.Count()),
		zap.Int("n_test_ratings", testSet.Count()),
		zap.Float64("test_ratio", testRatio))
	return trainSet, testSet, nil
}
