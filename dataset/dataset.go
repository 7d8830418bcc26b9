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
	"sort"

	"github.com/gorse-io/toprec/base"
	"github.com/gorse-io/toprec/base/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"modernc.org/sortutil"
)

// Rating is a single observation parsed from a data source.
type Rating struct {
	UserId string
	ItemId string
	Rating int
}

// Ratings maps user id to the items rated by the user.
type Ratings map[string]map[string]int

// Add inserts a rating. A second rating of the same (user, item) pair is rejected.
func (r Ratings) Add(userId, itemId string, rating int) error {
	if err := base.ValidateId(userId); err != nil {
		return errors.Annotate(err, "invalid user id")
	}
	if err := base.ValidateId(itemId); err != nil {
		return errors.Annotate(err, "invalid item id")
	}
	items, ok := r[userId]
	if !ok {
		items = make(map[string]int)
		r[userId] = items
	}
	if _, exist := items[itemId]; exist {
		return errors.AlreadyExistsf("rating (%s, %s)", userId, itemId)
	}
	items[itemId] = rating
	return nil
}

// Get returns the rating of an item by a user.
func (r Ratings) Get(userId, itemId string) (int, bool) {
	rating, ok := r[userId][itemId]
	return rating, ok
}

// Count returns the number of ratings.
func (r Ratings) Count() int {
	n := 0
	for _, items := range r {
		n += len(items)
	}
	return n
}

// Users returns user ids in lexicographic order.
func (r Ratings) Users() []string {
	users := lo.Keys(r)
	sort.Strings(users)
	return users
}

// Dataset is the indexed form of a Ratings partition. Users and items are assigned dense
// indices in lexicographic order of their ids, so that ties between equal scores can be
// broken by index.
type Dataset struct {
	userDict     *FreqDict
	itemDict     *FreqDict
	userFeedback [][]int32
	userRatings  [][]int
	itemFeedback [][]int32
}

// NewDataset indexes ratings. The ratings are not retained.
func NewDataset(ratings Ratings) *Dataset {
	d := &Dataset{
		userDict: NewFreqDict(),
		itemDict: NewFreqDict(),
	}
	// assign indices in lexicographic order
	itemSet := make(map[string]struct{})
	for _, items := range ratings {
		for itemId := range items {
			itemSet[itemId] = struct{}{}
		}
	}
	itemIds := lo.Keys(itemSet)
	sort.Strings(itemIds)
	for _, itemId := range itemIds {
		d.itemDict.NotCount(itemId)
	}
	userIds := ratings.Users()
	for _, userId := range userIds {
		d.userDict.NotCount(userId)
	}
	// build adjacency lists
	d.userFeedback = make([][]int32, len(userIds))
	d.userRatings = make([][]int, len(userIds))
	d.itemFeedback = make([][]int32, len(itemIds))
	for userIndex, userId := range userIds {
		items := ratings[userId]
		feedback := make([]int32, 0, len(items))
		for itemId := range items {
			feedback = append(feedback, int32(d.itemDict.Id(itemId)))
		}
		sort.Sort(sortutil.Int32Slice(feedback))
		d.userFeedback[userIndex] = feedback
		d.userRatings[userIndex] = make([]int, len(feedback))
		for i, itemIndex := range feedback {
			d.userRatings[userIndex][i] = items[itemIds[itemIndex]]
			d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], int32(userIndex))
		}
	}
	// user counts are the number of distinct rated items
	for userIndex, feedback := range d.userFeedback {
		d.userDict.cnt[userIndex] = len(feedback)
	}
	return d
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

func (d *Dataset) CountRatings() int {
	n := 0
	for _, feedback := range d.userFeedback {
		n += len(feedback)
	}
	return n
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

// GetUserFeedback returns sorted item indices rated by each user.
func (d *Dataset) GetUserFeedback() [][]int32 {
	return d.userFeedback
}

// GetUserRatings returns ratings aligned with GetUserFeedback.
func (d *Dataset) GetUserRatings() [][]int {
	return d.userRatings
}

// GetItemFeedback returns sorted user indices who rated each item.
func (d *Dataset) GetItemFeedback() [][]int32 {
	return d.itemFeedback
}

// UserIndex returns the dense index of a user.
func (d *Dataset) UserIndex(userId string) (int32, bool) {
	index, ok := d.userDict.Lookup(userId)
	return int32(index), ok
}

// ItemIndex returns the dense index of an item.
func (d *Dataset) ItemIndex(itemId string) (int32, bool) {
	index, ok := d.itemDict.Lookup(itemId)
	return int32(index), ok
}

// UserId returns the id of a user index.
func (d *Dataset) UserId(index int32) string {
	s, _ := d.userDict.String(int(index))
	return s
}

// ItemId returns the id of an item index.
func (d *Dataset) ItemId(index int32) string {
	s, _ := d.itemDict.String(int(index))
	return s
}

// Rated reports whether a user has rated an item.
func (d *Dataset) Rated(userIndex, itemIndex int32) bool {
	feedback := d.userFeedback[userIndex]
	i := sort.Search(len(feedback), func(i int) bool { return feedback[i] >= itemIndex })
	return i < len(feedback) && feedback[i] == itemIndex
}

// Popularity returns the popularity table of items.
func (d *Dataset) Popularity() *Popularity {
	return &Popularity{dict: d.itemDict}
}

func (d *Dataset) Marshal(w io.Writer) error {
	if err := d.userDict.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := d.itemDict.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, d.userFeedback); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteGob(w, d.userRatings)
}

func (d *Dataset) Unmarshal(r io.Reader) error {
	d.userDict, d.itemDict = NewFreqDict(), NewFreqDict()
	if err := d.userDict.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := d.itemDict.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &d.userFeedback); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &d.userRatings); err != nil {
		return errors.Trace(err)
	}
	if len(d.userFeedback) != d.userDict.Count() || len(d.userRatings) != len(d.userFeedback) {
		return errors.NotValidf("dataset with %d users and %d feedback lists", d.userDict.Count(), len(d.userFeedback))
	}
	// gob decodes empty slices as nil
	d.itemFeedback = make([][]int32, d.itemDict.Count())
	for userIndex, feedback := range d.userFeedback {
		if feedback == nil {
			d.userFeedback[userIndex] = []int32{}
			d.userRatings[userIndex] = []int{}
		}
		for _, itemIndex := range feedback {
			if int(itemIndex) >= len(d.itemFeedback) {
				return errors.NotValidf("item index %d", itemIndex)
			}
			d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], int32(userIndex))
		}
	}
	return nil
}

// Popularity counts, per item, the number of distinct users who rated it.
type Popularity struct {
	dict *FreqDict
}

// Get returns the popularity of an item. Unknown items have zero popularity.
func (p *Popularity) Get(itemId string) int {
	index, ok := p.dict.Lookup(itemId)
	if !ok {
		return 0
	}
	return p.dict.Freq(index)
}

// GetIndex returns the popularity of an item index.
func (p *Popularity) GetIndex(index int32) int {
	return p.dict.Freq(int(index))
}

// Count returns the number of distinct items.
func (p *Popularity) Count() int {
	return p.dict.Count()
}
