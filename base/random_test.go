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

package base

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestRandomGenerator_MakeUniformMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.UniformMatrix(1, 1000, 1, 2)[0]
	assert.GreaterOrEqual(t, lo.Min(vec), float32(1))
	assert.Less(t, lo.Max(vec), float32(2))
}

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).UniformVector(10, 0, 1)
	b := NewRandomGenerator(42).UniformVector(10, 0, 1)
	assert.Equal(t, a, b)
}

func TestRandomGenerator_SampleInt32(t *testing.T) {
	excludeSet := mapset.NewSet[int32](0, 1, 2, 3, 4)
	rng := NewRandomGenerator(0)
	for i := 1; i <= 10; i++ {
		sampled := rng.SampleInt32(0, 10, i, excludeSet)
		assert.LessOrEqual(t, len(sampled), 5)
		assert.Equal(t, len(sampled), mapset.NewSet(sampled...).Cardinality())
		for j := range sampled {
			assert.False(t, excludeSet.Contains(sampled[j]))
		}
	}
	// exhausted candidates
	sampled := rng.SampleInt32(0, 10, 5, excludeSet)
	assert.ElementsMatch(t, []int32{5, 6, 7, 8, 9}, sampled)
}
