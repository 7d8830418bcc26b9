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
	"github.com/gorse-io/toprec/model/cf"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const LabelModel = "model"

var (
	Registry = prometheus.NewRegistry()

	EvaluatePrecision  = newGaugeVec("evaluate", "precision")
	EvaluateRecall     = newGaugeVec("evaluate", "recall")
	EvaluateCoverage   = newGaugeVec("evaluate", "coverage")
	EvaluatePopularity = newGaugeVec("evaluate", "popularity")
	EvaluateSeconds    = newGaugeVec("evaluate", "seconds")
	FitSeconds         = newGaugeVec("fit", "seconds")
)

func newGaugeVec(subsystem, name string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "toprec",
		Subsystem: subsystem,
		Name:      name,
	}, []string{LabelModel})
	Registry.MustRegister(gauge)
	return gauge
}

// writeMetrics exports the score of a run in the Prometheus text format.
func writeMetrics(path string, e *Experiment, score cf.Score, evaluateSeconds float64) error {
	name := e.Config.Model.Type
	EvaluatePrecision.WithLabelValues(name).Set(float64(score.Precision))
	EvaluateRecall.WithLabelValues(name).Set(float64(score.Recall))
	EvaluateCoverage.WithLabelValues(name).Set(float64(score.Coverage))
	EvaluatePopularity.WithLabelValues(name).Set(float64(score.Popularity))
	EvaluateSeconds.WithLabelValues(name).Set(evaluateSeconds)
	FitSeconds.WithLabelValues(name).Set(e.FitTime.Seconds())
	return errors.Trace(prometheus.WriteToTextfile(path, Registry))
}
