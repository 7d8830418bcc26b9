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
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/base/parallel"
	"github.com/gorse-io/toprec/base/progress"
	"github.com/gorse-io/toprec/dataset"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const evaluateLogStep = 500

type partialScore struct {
	hit        int
	recCount   int
	testCount  int
	popularSum float64
	covered    *bitset.BitSet
}

// Evaluate recommends n items to every user of the train set and scores the lists
// against the test set:
//
//	precision  = hit / (n * #users)
//	recall     = hit / #test ratings of train users
//	coverage   = #distinct recommended items / #train items
//	popularity = sum of ln(1 + popularity) of recommended items / (n * #users)
//
// Users without test ratings are still evaluated. ErrDegenerateInput is returned if no
// recommendation budget or no test rating exists.
func Evaluate(ctx context.Context, m Model, trainSet *dataset.Dataset, testSet dataset.Ratings, n, jobs int) (Score, error) {
	if m.Invalid() {
		return Score{}, errors.Trace(ErrNotFitted)
	}
	jobs = max(jobs, 1)
	nUsers := trainSet.CountUsers()
	popularity := trainSet.Popularity()
	partials := make([]partialScore, jobs)
	for i := range partials {
		partials[i].covered = bitset.New(uint(trainSet.CountItems()))
	}

	start := time.Now()
	_, span := progress.Start(ctx, "Evaluate", nUsers)
	defer span.End()
	completed := atomic.NewInt64(0)
	err := parallel.Parallel(ctx, nUsers, jobs, func(workerId, jobId int) error {
		userId := trainSet.UserId(int32(jobId))
		recommendations, err := m.Recommend(userId, n)
		if err != nil {
			return errors.Annotatef(err, "recommend to user %s", userId)
		}
		partial := &partials[workerId]
		testItems := testSet[userId]
		for _, recommendation := range recommendations {
			if _, ok := testItems[recommendation.ItemId]; ok {
				partial.hit++
			}
			if itemIndex, ok := trainSet.ItemIndex(recommendation.ItemId); ok {
				partial.covered.Set(uint(itemIndex))
			}
			partial.popularSum += math.Log1p(float64(popularity.Get(recommendation.ItemId)))
		}
		partial.recCount += n
		partial.testCount += len(testItems)
		span.Add(1)
		if count := completed.Inc(); count%evaluateLogStep == 0 {
			log.Logger().Info("evaluate",
				zap.Int64("n_complete", count),
				zap.Int("n_users", nUsers),
				zap.Duration("duration", time.Since(start)))
		}
		return nil
	})
	if err != nil {
		span.Fail(err)
		return Score{}, errors.Trace(err)
	}

	// reduce
	total := partialScore{covered: bitset.New(uint(trainSet.CountItems()))}
	for _, partial := range partials {
		total.hit += partial.hit
		total.recCount += partial.recCount
		total.testCount += partial.testCount
		total.popularSum += partial.popularSum
		total.covered.InPlaceUnion(partial.covered)
	}
	if total.recCount == 0 || total.testCount == 0 || trainSet.CountItems() == 0 {
		return Score{}, errors.Annotatef(ErrDegenerateInput,
			"%d recommendations, %d test ratings, %d items", total.recCount, total.testCount, trainSet.CountItems())
	}
	score := Score{
		Precision:  float32(total.hit) / float32(total.recCount),
		Recall:     float32(total.hit) / float32(total.testCount),
		Coverage:   float32(total.covered.Count()) / float32(trainSet.CountItems()),
		Popularity: float32(total.popularSum / float64(total.recCount)),
	}
	log.Logger().Info("complete evaluation",
		zap.Float32("precision", score.Precision),
		zap.Float32("recall", score.Recall),
		zap.Float32("coverage", score.Coverage),
		zap.Float32("popularity", score.Popularity),
		zap.Duration("duration", time.Since(start)))
	return score, nil
}
