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
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"time"

	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/base/progress"
	"github.com/gorse-io/toprec/config"
	"github.com/gorse-io/toprec/model/cf"
	"github.com/gorse-io/toprec/storage/meta"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-build-time"
)

func BuildInfo() string {
	var buildInfo string
	buildInfo += fmt.Sprintln("Version:\t", Version)
	buildInfo += fmt.Sprintln("Go version:\t", runtime.Version())
	buildInfo += fmt.Sprintln("Git commit:\t", GitCommit)
	buildInfo += fmt.Sprintln("Built:\t\t", BuildTime)
	buildInfo += fmt.Sprintf("OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return buildInfo
}

var rootCommand = &cobra.Command{
	Use:   "toprec",
	Short: "Offline Top-N recommendation experiments",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(BuildInfo())
	},
}

var testCommand = &cobra.Command{
	Use:   "test",
	Short: "Fit a recommender and evaluate it on the test partition",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		tracer := progress.NewTracer("toprec")
		startTime := time.Now()

		e, err := Prepare(ctx, cfg)
		if err != nil {
			log.Logger().Fatal("failed to prepare experiment", zap.Error(err))
		}
		ctx, span := tracer.Start(ctx, cfg.Model.Type, 2)
		if err = e.Fit(ctx); err != nil {
			span.Fail(err)
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		span.Add(1)
		score, evaluateTime, err := e.Evaluate(ctx)
		if err != nil {
			span.Fail(err)
			log.Logger().Fatal("failed to evaluate model", zap.Error(err))
		}
		span.End()
		for _, p := range tracer.List() {
			for _, child := range p.Children {
				log.Logger().Info("complete step", zap.String("model", p.Name), zap.String("step", child.Name),
					zap.String("status", string(child.Status)), zap.Duration("elapsed", child.FinishTime.Sub(child.StartTime)))
			}
		}

		if err = renderScores(os.Stdout, e, score); err != nil {
			log.Logger().Fatal("failed to render table", zap.Error(err))
		}
		if _, err = e.Record(score, evaluateTime, startTime); err != nil {
			log.Logger().Fatal("failed to record run", zap.Error(err))
		}
		if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
			if err = writeMetrics(path, e, score, evaluateTime.Seconds()); err != nil {
				log.Logger().Fatal("failed to write metrics", zap.Error(err))
			}
		}
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend items to a user",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		userId, _ := cmd.Flags().GetString("user")
		n, _ := cmd.Flags().GetInt("n")
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		e, err := Prepare(ctx, cfg)
		if err != nil {
			log.Logger().Fatal("failed to prepare experiment", zap.Error(err))
		}
		if err = e.Fit(ctx); err != nil {
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		recommendations, err := e.Model.Recommend(userId, n)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.String("user_id", userId), zap.Error(err))
		}
		if err = renderRecommendations(os.Stdout, recommendations); err != nil {
			log.Logger().Fatal("failed to render table", zap.Error(err))
		}
	},
}

var historyCommand = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if cfg.History.Path == "" {
			log.Logger().Fatal("history database isn't configured")
		}
		modelName, _ := cmd.Flags().GetString("model")
		limit, _ := cmd.Flags().GetInt("limit")
		database, err := meta.Open(cfg.History.Path)
		if err != nil {
			log.Logger().Fatal("failed to open history database", zap.Error(err))
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			log.Logger().Fatal("failed to init history database", zap.Error(err))
		}
		runs, err := database.ListRuns(modelName, limit)
		if err != nil {
			log.Logger().Fatal("failed to list runs", zap.Error(err))
		}
		if err = renderRuns(os.Stdout, runs); err != nil {
			log.Logger().Fatal("failed to render table", zap.Error(err))
		}
	},
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Evaluate.Jobs, _ = cmd.Flags().GetInt("jobs")
	}
	if cmd.Flags().Changed("model-type") {
		cfg.Model.Type, _ = cmd.Flags().GetString("model-type")
	}
	if err = cfg.Validate(); err != nil {
		log.Logger().Fatal("invalid config", zap.Error(err))
	}
	return cfg
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', 4, 32)
}

func renderScores(w io.Writer, e *Experiment, score cf.Score) error {
	table := tablewriter.NewWriter(w)
	table.Header("Model", "Params", fmt.Sprintf("Precision@%d", e.Config.Evaluate.TopN),
		fmt.Sprintf("Recall@%d", e.Config.Evaluate.TopN), "Coverage", "Popularity")
	if err := table.Append([]string{
		e.Config.Model.Type,
		e.Model.GetParams().ToString(),
		formatFloat(score.Precision),
		formatFloat(score.Recall),
		formatFloat(score.Coverage),
		formatFloat(score.Popularity),
	}); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(table.Render())
}

func renderRecommendations(w io.Writer, recommendations []cf.Recommendation) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Item", "Score")
	for i, recommendation := range recommendations {
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			recommendation.ItemId,
			formatFloat(recommendation.Score),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func renderRuns(w io.Writer, runs []*meta.Run) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Start", "Model", "Params", "Dataset", "Top-N", "Precision", "Recall",
		"Coverage", "Popularity", "Fit", "Evaluate")
	for _, run := range runs {
		if err := table.Append([]string{
			strconv.FormatInt(run.ID, 10),
			run.StartTime.Local().Format(time.DateTime),
			run.Model,
			run.Params,
			run.Dataset,
			strconv.Itoa(run.TopN),
			formatFloat(run.Precision),
			formatFloat(run.Recall),
			formatFloat(run.Coverage),
			formatFloat(run.Popularity),
			run.FitTime.String(),
			run.EvaluateTime.String(),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func init() {
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().String("model-type", "", "override the model type of the configuration")
	rootCommand.PersistentFlags().IntP("jobs", "j", 1, "number of concurrent workers")
	log.AddFlags(rootCommand.PersistentFlags())
	testCommand.Flags().String("metrics-file", "", "write evaluation metrics in the Prometheus text format")
	recommendCommand.Flags().StringP("user", "u", "", "user id")
	recommendCommand.Flags().IntP("n", "n", 10, "number of recommended items")
	_ = recommendCommand.MarkFlagRequired("user")
	historyCommand.Flags().String("model", "", "list runs of a model only")
	historyCommand.Flags().Int("limit", 20, "maximum number of runs")
	rootCommand.AddCommand(testCommand, recommendCommand, historyCommand, versionCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
