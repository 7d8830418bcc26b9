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

package meta

import (
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) TestRuns() {
	startTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []*Run{
		{Model: "user_cf", Params: `{"n_neighbors":20}`, Dataset: "ml-100k", TestRatio: 0.3, TopN: 10,
			Precision: 0.25, Recall: 0.125, Coverage: 0.5, Popularity: 4.5,
			FitTime: 1500 * time.Millisecond, EvaluateTime: 2 * time.Second, StartTime: startTime},
		{Model: "lfm", Params: `{"n_factors":100}`, Dataset: "ml-100k", TestRatio: 0.3, TopN: 10,
			Checkpoint: "lfm/ml-100k-1", StartTime: startTime.Add(time.Minute)},
		{Model: "user_cf", Params: `{"n_neighbors":40}`, Dataset: "ml-1m", TestRatio: 0.2, TopN: 5,
			StartTime: startTime.Add(2 * time.Minute)},
	}
	for _, run := range runs {
		suite.NoError(suite.Database.AddRun(run))
	}
	suite.Equal(int64(1), runs[0].ID)
	suite.Equal(int64(3), runs[2].ID)

	// get a run
	run, err := suite.Database.GetRun(runs[0].ID)
	suite.NoError(err)
	suite.Equal("user_cf", run.Model)
	suite.Equal(`{"n_neighbors":20}`, run.Params)
	suite.Equal(0.3, run.TestRatio)
	suite.Equal(10, run.TopN)
	suite.Equal(float32(0.25), run.Precision)
	suite.Equal(float32(0.125), run.Recall)
	suite.Equal(float32(0.5), run.Coverage)
	suite.Equal(float32(4.5), run.Popularity)
	suite.Equal(1500*time.Millisecond, run.FitTime)
	suite.Equal(2*time.Second, run.EvaluateTime)
	suite.True(startTime.Equal(run.StartTime))
	_, err = suite.Database.GetRun(100)
	suite.True(errors.Is(err, errors.NotFound))

	// list runs
	all, err := suite.Database.ListRuns("", 0)
	suite.NoError(err)
	if suite.Len(all, 3) {
		suite.Equal(int64(3), all[0].ID)
		suite.Equal(int64(1), all[2].ID)
		suite.Equal("lfm/ml-100k-1", all[1].Checkpoint)
	}
	userCF, err := suite.Database.ListRuns("user_cf", 0)
	suite.NoError(err)
	suite.Len(userCF, 2)
	latest, err := suite.Database.ListRuns("", 1)
	suite.NoError(err)
	if suite.Len(latest, 1) {
		suite.Equal("ml-1m", latest[0].Dataset)
	}
	none, err := suite.Database.ListRuns("random", 0)
	suite.NoError(err)
	suite.Empty(none)
}

func (suite *baseTestSuite) TestInitTwice() {
	suite.NoError(suite.Database.Init())
}
