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
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/juju/errors"
)

// RatingFilter keeps ratings matching a boolean expression over `user`, `item` and
// `rating`, e.g. `rating >= 4`.
type RatingFilter struct {
	program *vm.Program
}

func NewRatingFilter(expression string) (*RatingFilter, error) {
	program, err := expr.Compile(expression, expr.Env(map[string]any{
		"user":   "",
		"item":   "",
		"rating": 0,
	}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if program.Node().Type().Kind() != reflect.Bool {
		return nil, errors.NotValidf("filter %q not returning bool", expression)
	}
	return &RatingFilter{program: program}, nil
}

// Filter returns ratings accepted by the expression.
func (f *RatingFilter) Filter(ratings []Rating) ([]Rating, error) {
	var filtered []Rating
	for _, rating := range ratings {
		result, err := expr.Run(f.program, map[string]any{
			"user":   rating.UserId,
			"item":   rating.ItemId,
			"rating": rating.Rating,
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		if result.(bool) {
			filtered = append(filtered, rating)
		}
	}
	return filtered, nil
}
