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
	"fmt"
	"io"
	"time"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/toprec/base"
	"github.com/gorse-io/toprec/base/encoding"
	"github.com/gorse-io/toprec/base/floats"
	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/base/progress"
	"github.com/gorse-io/toprec/dataset"
	"github.com/gorse-io/toprec/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	// negative sampling draws at most this many items per positive item
	negativeAttempts = 11
	// negative sampling stops once samples reach this many times the positive items
	negativeRatio = 10
)

// LFM is the latent factor model trained by SGD with negative sampling. The score of an
// item for a user is the dot product of their latent factors.
//
//	NFactors    - number of latent factors (default 100)
//	NEpochs     - number of training epochs (default 5)
//	Lr          - initial learning rate, decayed by 0.9 after each epoch (default 0.02)
//	Reg         - L2 regularization strength (default 0.01)
//	RandomState - random seed (default 0)
type LFM struct {
	BaseRecommender
	UserFactor [][]float32 // P
	ItemFactor [][]float32 // Q
	// Hyper-parameters
	nFactors int
	nEpochs  int
	lr       float32
	reg      float32
}

func NewLFM(params model.Params) *LFM {
	m := new(LFM)
	m.SetParams(params)
	return m
}

func (m *LFM) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nFactors = m.Params.GetInt(model.NFactors, 100)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 5)
	m.lr = m.Params.GetFloat32(model.Lr, 0.02)
	m.reg = m.Params.GetFloat32(model.Reg, 0.01)
}

// String returns the name of the model with its hyper-parameters.
func (m *LFM) String() string {
	return fmt.Sprintf("K=%d-epochs=%d-alpha=%v-lamb=%v", m.nFactors, m.nEpochs, m.lr, m.reg)
}

func (m *LFM) Clear() {
	m.BaseRecommender.Clear()
	m.UserFactor = nil
	m.ItemFactor = nil
}

func (m *LFM) Invalid() bool {
	return m == nil || m.BaseRecommender.Invalid() || m.UserFactor == nil || m.ItemFactor == nil
}

func (m *LFM) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	if config == nil {
		config = NewFitConfig()
	}
	if m.nFactors <= 0 {
		return errors.NotValidf("number of factors %d", m.nFactors)
	}
	log.Logger().Info("fit LFM",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_factors", m.nFactors),
		zap.Int("n_epochs", m.nEpochs),
		zap.Float32("lr", m.lr),
		zap.Float32("reg", m.reg))
	m.ResetRandomGenerator()
	rng := m.GetRandomGenerator()
	scale := 1 / math32.Sqrt(float32(m.nFactors))
	userFactor := rng.UniformMatrix(trainSet.CountUsers(), m.nFactors, 0, scale)
	itemFactor := rng.UniformMatrix(trainSet.CountItems(), m.nFactors, 0, scale)

	// negative items are drawn in proportion to popularity
	userFeedback := trainSet.GetUserFeedback()
	pool := make([]int32, 0, trainSet.CountRatings())
	for _, feedback := range userFeedback {
		pool = append(pool, feedback...)
	}

	_, span := progress.Start(ctx, "LFM.Fit", m.nEpochs)
	defer span.End()
	lr := m.lr
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		start := time.Now()
		var loss float32
		var nSamples int
		for userIndex, feedback := range userFeedback {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			userVec := userFactor[userIndex]
			for _, sample := range sampleNegatives(rng, feedback, pool) {
				itemVec := itemFactor[sample.itemIndex]
				diff := sample.label - floats.Dot(userVec, itemVec)
				loss += diff * diff
				nSamples++
				for k := range userVec {
					userVec[k] += lr * (diff*itemVec[k] - m.reg*userVec[k])
					itemVec[k] += lr * (diff*userVec[k] - m.reg*itemVec[k])
				}
			}
		}
		lr *= 0.9
		span.Add(1)
		if config.Verbose > 0 && epoch%config.Verbose == 0 {
			log.Logger().Info("fit LFM",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", m.nEpochs),
				zap.Float32("loss", loss/float32(max(nSamples, 1))),
				zap.Duration("duration", time.Since(start)))
		}
	}
	m.Init(trainSet)
	m.UserFactor = userFactor
	m.ItemFactor = itemFactor
	return nil
}

type labeledItem struct {
	itemIndex int32
	label     float32
}

// sampleNegatives returns positive items labeled 1 followed by negative items labeled 0.
// At most negativeAttempts*|positive| items are drawn from the pool, and sampling stops
// once the samples reach negativeRatio*|positive|.
func sampleNegatives(rng base.RandomGenerator, positive, pool []int32) []labeledItem {
	samples := make([]labeledItem, 0, len(positive)*negativeRatio)
	sampled := mapset.NewThreadUnsafeSet[int32]()
	for _, itemIndex := range positive {
		samples = append(samples, labeledItem{itemIndex: itemIndex, label: 1})
		sampled.Add(itemIndex)
	}
	if len(pool) == 0 {
		return samples
	}
	for i := 0; i < len(positive)*negativeAttempts; i++ {
		itemIndex := pool[rng.Intn(len(pool))]
		if sampled.Contains(itemIndex) {
			continue
		}
		samples = append(samples, labeledItem{itemIndex: itemIndex, label: 0})
		sampled.Add(itemIndex)
		if len(samples) >= len(positive)*negativeRatio {
			break
		}
	}
	return samples
}

// Recommend ranks all items unrated by the user by dot(P[user], Q[item]).
func (m *LFM) Recommend(userId string, n int) ([]Recommendation, error) {
	if m.Invalid() {
		return nil, errors.Trace(ErrNotFitted)
	}
	userIndex, ok := m.lookupUser(userId)
	if !ok {
		return nil, nil
	}
	scores := make(map[int32]float32, len(m.ItemFactor))
	for itemIndex, itemVec := range m.ItemFactor {
		if !m.TrainSet.Rated(userIndex, int32(itemIndex)) {
			scores[int32(itemIndex)] = floats.Dot(m.UserFactor[userIndex], itemVec)
		}
	}
	return m.topN(scores, n), nil
}

func (m *LFM) Marshal(w io.Writer) error {
	if err := m.BaseRecommender.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, m.UserFactor); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, m.ItemFactor))
}

func (m *LFM) Unmarshal(r io.Reader) error {
	if err := m.BaseRecommender.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(m.Params)
	var err error
	if m.UserFactor, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if m.ItemFactor, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if len(m.UserFactor) != m.TrainSet.CountUsers() || len(m.ItemFactor) != m.TrainSet.CountItems() {
		return errors.NotValidf("latent factors of %d users and %d items", len(m.UserFactor), len(m.ItemFactor))
	}
	return nil
}
