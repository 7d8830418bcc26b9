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

package main

import (
	"context"
	"strings"
	"time"

	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/base/progress"
	"github.com/gorse-io/toprec/config"
	"github.com/gorse-io/toprec/dataset"
	"github.com/gorse-io/toprec/model/cf"
	"github.com/gorse-io/toprec/storage/blob"
	"github.com/gorse-io/toprec/storage/checkpoint"
	"github.com/gorse-io/toprec/storage/meta"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Experiment is a model fitted on the train partition of a dataset.
type Experiment struct {
	Config   *config.Config
	Dataset  string
	TrainSet *dataset.Dataset
	TestSet  dataset.Ratings
	Model    cf.Model

	Checkpoint string
	Loaded     bool
	FitTime    time.Duration
}

// datasetName identifies the ratings selected by the configuration.
func datasetName(cfg config.DatasetConfig) string {
	var name string
	switch {
	case cfg.Path != "":
		name = cfg.Path
	case cfg.SQLite != "":
		name = cfg.SQLite + "|" + cfg.Query
	default:
		name = cfg.Name
	}
	if cfg.Filter != "" {
		name += "|" + cfg.Filter
	}
	return name
}

func loadRatings(ctx context.Context, cfg config.DatasetConfig) ([]dataset.Rating, error) {
	var (
		ratings []dataset.Rating
		err     error
	)
	switch {
	case cfg.Path != "":
		log.Logger().Info("load ratings from file", zap.String("path", cfg.Path))
		ratings, err = dataset.LoadFile(cfg.Path, cfg.Sep, cfg.Header)
	case cfg.SQLite != "":
		log.Logger().Info("load ratings from sqlite", zap.String("path", cfg.SQLite), zap.String("query", cfg.Query))
		ratings, err = dataset.LoadSQLite(ctx, cfg.SQLite, cfg.Query)
	default:
		log.Logger().Info("load built-in dataset", zap.String("name", cfg.Name))
		ratings, err = dataset.LoadBuiltIn(cfg.Name, cfg.DataDir)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Filter != "" {
		filter, err := dataset.NewRatingFilter(cfg.Filter)
		if err != nil {
			return nil, errors.Trace(err)
		}
		n := len(ratings)
		if ratings, err = filter.Filter(ratings); err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("filter ratings", zap.String("filter", cfg.Filter),
			zap.Int("n_before", n), zap.Int("n_after", len(ratings)))
	}
	return ratings, nil
}

// Prepare loads and splits ratings, then creates the configured model.
func Prepare(ctx context.Context, cfg *config.Config) (*Experiment, error) {
	ratings, err := loadRatings(ctx, cfg.Dataset)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(ratings) == 0 {
		return nil, errors.Annotate(cf.ErrDegenerateInput, "empty dataset")
	}
	trainRatings, testRatings, err := dataset.Split(ratings, cfg.Dataset.TestRatio, cfg.Dataset.Seed)
	if err != nil {
		return nil, errors.Trace(err)
	}
	trainSet := dataset.NewDataset(trainRatings)
	log.Logger().Info("split dataset",
		zap.Float64("test_ratio", cfg.Dataset.TestRatio),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_train", trainSet.CountRatings()),
		zap.Int("n_test", testRatings.Count()))
	m, err := cf.NewModel(cfg.Model.Type, cfg.Model.GetParams())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Experiment{
		Config:   cfg,
		Dataset:  datasetName(cfg.Dataset),
		TrainSet: trainSet,
		TestSet:  testRatings,
		Model:    m,
	}, nil
}

func (e *Experiment) checkpointKey() checkpoint.Key {
	return checkpoint.Key{
		Model:     e.Config.Model.Type,
		Params:    e.Config.Model.GetParams(),
		Dataset:   e.Dataset,
		TestRatio: e.Config.Dataset.TestRatio,
		Seed:      e.Config.Dataset.Seed,
	}
}

// Fit fits the model, or loads it from a checkpoint if enabled. A fitted model is saved when no checkpoint
// exists.
func (e *Experiment) Fit(ctx context.Context) error {
	var manager *checkpoint.Manager
	if e.Config.Checkpoint.Enable {
		store, err := blob.Open(e.Config.Checkpoint)
		if err != nil {
			return errors.Trace(err)
		}
		manager = checkpoint.NewManager(store)
		key := e.checkpointKey()
		e.Checkpoint = key.Name()
		m, err := manager.Load(key)
		if err == nil {
			if sameTrainSet(m.GetTrainSet(), e.TrainSet) {
				e.Model = m
				e.Loaded = true
				return nil
			}
			log.Logger().Warn("checkpoint fitted on another train set", zap.String("name", e.Checkpoint))
		} else if !errors.Is(err, errors.NotFound) {
			return errors.Trace(err)
		}
	}

	ctx, span := progress.Start(ctx, "fit", 1)
	fitConfig := cf.NewFitConfig().SetJobs(e.Config.Evaluate.Jobs)
	if err := e.Model.Fit(ctx, e.TrainSet, fitConfig); err != nil {
		span.Fail(err)
		return errors.Trace(err)
	}
	span.End()
	e.FitTime = span.Elapsed()
	log.Logger().Info("fit model", zap.String("model", e.Config.Model.Type),
		zap.String("params", e.Model.GetParams().ToString()), zap.Duration("elapsed", e.FitTime))

	if manager != nil {
		if err := manager.Save(e.checkpointKey(), e.Model); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// sameTrainSet reports whether a checkpointed train set matches the current split.
func sameTrainSet(saved, current *dataset.Dataset) bool {
	return saved != nil &&
		saved.CountUsers() == current.CountUsers() &&
		saved.CountItems() == current.CountItems() &&
		saved.CountRatings() == current.CountRatings()
}

// Evaluate scores the fitted model on the test partition.
func (e *Experiment) Evaluate(ctx context.Context) (cf.Score, time.Duration, error) {
	ctx, span := progress.Start(ctx, "evaluate", 1)
	score, err := cf.Evaluate(ctx, e.Model, e.TrainSet, e.TestSet, e.Config.Evaluate.TopN, e.Config.Evaluate.Jobs)
	if err != nil {
		span.Fail(err)
		return cf.Score{}, 0, errors.Trace(err)
	}
	span.End()
	return score, span.Elapsed(), nil
}

// Record saves an evaluated run to the history database if configured.
func (e *Experiment) Record(score cf.Score, evaluateTime time.Duration, startTime time.Time) (*meta.Run, error) {
	if e.Config.History.Path == "" {
		return nil, nil
	}
	database, err := meta.Open(e.Config.History.Path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()
	if err = database.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	run := &meta.Run{
		Model:        e.Config.Model.Type,
		Params:       e.Model.GetParams().ToString(),
		Dataset:      e.Dataset,
		TestRatio:    e.Config.Dataset.TestRatio,
		TopN:         e.Config.Evaluate.TopN,
		Precision:    score.Precision,
		Recall:       score.Recall,
		Coverage:     score.Coverage,
		Popularity:   score.Popularity,
		FitTime:      e.FitTime,
		EvaluateTime: evaluateTime,
		Checkpoint:   e.Checkpoint,
		StartTime:    startTime,
	}
	if err = database.AddRun(run); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("record run", zap.Int64("id", run.ID), zap.String("database",
		strings.TrimPrefix(e.Config.History.Path, meta.SQLitePrefix)))
	return run, nil
}
