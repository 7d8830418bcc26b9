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
	"io"

	"github.com/gorse-io/toprec/base/encoding"
	"github.com/juju/errors"
)

// FreqDict maps names to dense indices and counts how many times each name is seen.
type FreqDict struct {
	si  map[string]int
	is  []string
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[string]int{}, []string{}, []int{}}
	return
}

func (d *FreqDict) Count() int {
	return len(d.is)
}

// Id returns the index of s and increases its frequency. A new index is assigned for
// unseen names.
func (d *FreqDict) Id(s string) (y int) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}

	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the index of s without touching its frequency.
func (d *FreqDict) NotCount(s string) (y int) {
	if y, ok := d.si[s]; ok {
		return y
	}

	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

// Lookup returns the index of s. Unseen names are never inserted.
func (d *FreqDict) Lookup(s string) (int, bool) {
	y, ok := d.si[s]
	return y, ok
}

func (d *FreqDict) String(id int) (s string, ok bool) {
	if id < 0 || id >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

func (d *FreqDict) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, d.is); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteGob(w, d.cnt)
}

func (d *FreqDict) Unmarshal(r io.Reader) error {
	var (
		is  []string
		cnt []int
	)
	if err := encoding.ReadGob(r, &is); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &cnt); err != nil {
		return errors.Trace(err)
	}
	if len(is) != len(cnt) {
		return errors.NotValidf("dict with %d names and %d counts", len(is), len(cnt))
	}
	d.si = make(map[string]int, len(is))
	d.is = make([]string, 0, len(is))
	d.cnt = make([]int, 0, len(is))
	for i, s := range is {
		d.si[s] = i
		d.is = append(d.is, s)
		d.cnt = append(d.cnt, cnt[i])
	}
	return nil
}
