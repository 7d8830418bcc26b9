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
	"reflect"

	"github.com/gorse-io/toprec/base/encoding"
	"github.com/gorse-io/toprec/base/heap"
	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/dataset"
	"github.com/gorse-io/toprec/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

var (
	// ErrNotFitted is returned when a model is used before Fit.
	ErrNotFitted = errors.New("model not fitted")
	// ErrDegenerateInput is returned when metrics are undefined for the given partitions.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrInsufficientItems is returned when more distinct items are requested than available.
	ErrInsufficientItems = errors.New("insufficient items")
)

// Recommendation is an item and its ranking score.
type Recommendation struct {
	ItemId string
	Score  float32
}

type Score struct {
	Precision  float32
	Recall     float32
	Coverage   float32
	Popularity float32
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 1,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

type Model interface {
	model.Model
	// Fit a model with a train set. Fitting replaces all derived state.
	Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error
	// Recommend at most n items not rated by the user, in descending order of scores.
	// An unknown user gets an empty list.
	Recommend(userId string, n int) ([]Recommendation, error)
	// Invalid returns true if the model has not been fitted.
	Invalid() bool
	// GetTrainSet returns the train set the model was fitted with.
	GetTrainSet() *dataset.Dataset
	// GetPopularity returns the popularity table of the train set.
	GetPopularity() *dataset.Popularity
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

// BaseRecommender holds hyper-parameters and the indexed train set shared by all
// recommenders.
type BaseRecommender struct {
	model.BaseModel
	TrainSet *dataset.Dataset
}

func (r *BaseRecommender) Init(trainSet *dataset.Dataset) {
	r.TrainSet = trainSet
}

func (r *BaseRecommender) GetTrainSet() *dataset.Dataset {
	return r.TrainSet
}

// GetPopularity returns the popularity table of the train set.
func (r *BaseRecommender) GetPopularity() *dataset.Popularity {
	if r.TrainSet == nil {
		return nil
	}
	return r.TrainSet.Popularity()
}

func (r *BaseRecommender) Clear() {
	r.TrainSet = nil
}

func (r *BaseRecommender) Invalid() bool {
	return r == nil || r.TrainSet == nil
}

// lookupUser returns the index of a user. Unknown users are logged.
func (r *BaseRecommender) lookupUser(userId string) (int32, bool) {
	userIndex, ok := r.TrainSet.UserIndex(userId)
	if !ok {
		log.Logger().Warn("unknown user", zap.String("user_id", userId))
	}
	return userIndex, ok
}

// topN ranks candidate items by score. Ties are broken by item index.
func (r *BaseRecommender) topN(scores map[int32]float32, n int) []Recommendation {
	filter := heap.NewTopKFilter[int32, float32](n)
	for itemIndex, score := range scores {
		filter.Push(itemIndex, score)
	}
	items, weights := filter.PopAll()
	recommendations := make([]Recommendation, len(items))
	for i := range items {
		recommendations[i] = Recommendation{ItemId: r.TrainSet.ItemId(items[i]), Score: weights[i]}
	}
	return recommendations
}

func (r *BaseRecommender) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, r.Params); err != nil {
		return errors.Trace(err)
	}
	return r.TrainSet.Marshal(w)
}

func (r *BaseRecommender) Unmarshal(rd io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(rd, &params); err != nil {
		return errors.Trace(err)
	}
	r.SetParams(params)
	r.TrainSet = &dataset.Dataset{}
	return errors.Trace(r.TrainSet.Unmarshal(rd))
}

// RecommendAll recommends n items to every user in the train set of a fitted model.
func RecommendAll(m Model, n int) (map[string][]Recommendation, error) {
	if m.Invalid() {
		return nil, errors.Trace(ErrNotFitted)
	}
	trainSet := m.GetTrainSet()
	results := make(map[string][]Recommendation, trainSet.CountUsers())
	for userIndex := 0; userIndex < trainSet.CountUsers(); userIndex++ {
		userId := trainSet.UserId(int32(userIndex))
		recommendations, err := m.Recommend(userId, n)
		if err != nil {
			return nil, errors.Trace(err)
		}
		results[userId] = recommendations
	}
	return results, nil
}

const (
	UserCF      = "user_cf"
	ItemCF      = "item_cf"
	LFMName     = "lfm"
	MostPopular = "most_popular"
	RandomName  = "random"
)

// NewModel creates a model by name.
func NewModel(name string, params model.Params) (Model, error) {
	switch name {
	case UserCF:
		return NewUserBasedCF(params), nil
	case ItemCF:
		return NewItemBasedCF(params), nil
	case LFMName:
		return NewLFM(params), nil
	case MostPopular:
		return NewPopular(params), nil
	case RandomName:
		return NewRandom(params), nil
	}
	return nil, errors.NotSupportedf("model %s", name)
}

func GetModelName(m Model) string {
	switch m.(type) {
	case *UserBasedCF:
		return UserCF
	case *ItemBasedCF:
		return ItemCF
	case *LFM:
		return LFMName
	case *Popular:
		return MostPopular
	case *Random:
		return RandomName
	default:
		return reflect.TypeOf(m).String()
	}
}

func MarshalModel(w io.Writer, m Model) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func UnmarshalModel(r io.Reader) (Model, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewModel(name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
