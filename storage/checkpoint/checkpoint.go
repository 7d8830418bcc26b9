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

package checkpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorse-io/toprec/base/encoding"
	"github.com/gorse-io/toprec/base/log"
	"github.com/gorse-io/toprec/model"
	"github.com/gorse-io/toprec/model/cf"
	"github.com/gorse-io/toprec/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const formatVersion = "v1"

var (
	namespace   = uuid.MustParse("8b1c6a4e-2f0d-4f6e-9a51-3c7d2e5b9f10")
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Key identifies a fitted model: the same model with the same hyper-parameters fitted on the
// same split shares a checkpoint.
type Key struct {
	Model     string
	Params    model.Params
	Dataset   string
	TestRatio float64
	Seed      int64
}

// Name returns the blob name of the checkpoint.
func (k Key) Name() string {
	params := k.Params
	if params == nil {
		params = model.Params{}
	}
	digest := uuid.NewSHA1(namespace, []byte(strings.Join([]string{
		k.Model,
		params.ToString(),
		k.Dataset,
		strconv.FormatFloat(k.TestRatio, 'g', -1, 64),
		strconv.FormatInt(k.Seed, 10),
	}, "|")))
	dataset := strings.Trim(unsafeChars.ReplaceAllString(k.Dataset, "_"), "_")
	if dataset == "" {
		dataset = "dataset"
	}
	return fmt.Sprintf("%s/%s-%s", k.Model, dataset, digest)
}

// Manager saves fitted models to and loads them from a blob store.
type Manager struct {
	store blob.Store
}

func NewManager(store blob.Store) *Manager {
	return &Manager{store: store}
}

// Save writes a fitted model under the key.
func (m *Manager) Save(key Key, recommender cf.Model) error {
	if recommender.Invalid() {
		return errors.Annotate(cf.ErrNotFitted, "save checkpoint")
	}
	name := key.Name()
	w, done, err := m.store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	err = encoding.WriteString(w, formatVersion)
	if err == nil {
		err = cf.MarshalModel(w, recommender)
	}
	if err != nil {
		if pw, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = pw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	if err = <-done; err != nil {
		return errors.Annotatef(err, "save checkpoint %s", name)
	}
	log.Logger().Info("save checkpoint", zap.String("name", name))
	return nil
}

// Load reads the model saved under the key. It returns an error satisfying errors.Is(err, errors.NotFound)
// if no checkpoint exists.
func (m *Manager) Load(key Key) (cf.Model, error) {
	name := key.Name()
	r, err := m.store.Open(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	version, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Annotatef(err, "read checkpoint %s", name)
	}
	if version != formatVersion {
		return nil, errors.NotSupportedf("checkpoint version %s", version)
	}
	recommender, err := cf.UnmarshalModel(r)
	if err != nil {
		return nil, errors.Annotatef(err, "read checkpoint %s", name)
	}
	if got := cf.GetModelName(recommender); got != key.Model {
		return nil, errors.NotValidf("checkpoint %s holds %s", name, got)
	}
	log.Logger().Info("load checkpoint", zap.String("name", name))
	return recommender, nil
}

// List returns names of all checkpoints.
func (m *Manager) List() ([]string, error) {
	names, err := m.store.List()
	return names, errors.Trace(err)
}

// Remove deletes the checkpoint saved under the key.
func (m *Manager) Remove(key Key) error {
	return errors.Trace(m.store.Remove(key.Name()))
}
