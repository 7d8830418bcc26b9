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

package blob

import (
	"io"

	"github.com/gorse-io/toprec/config"
	"github.com/juju/errors"
)

// Store is a flat namespace of named blobs.
type Store interface {
	// Open a blob for reading. It returns an error satisfying errors.Is(err, errors.NotFound)
	// if the blob doesn't exist.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The blob is committed once the writer is closed. The done
	// channel then yields the result of the commit and is closed.
	Create(name string) (io.WriteCloser, chan error, error)
	// List names of all blobs.
	List() ([]string, error)
	// Remove a blob.
	Remove(name string) error
}

// Open creates the blob store selected by the checkpoint configuration.
func Open(cfg config.CheckpointConfig) (Store, error) {
	switch cfg.Type {
	case config.BlobPOSIX:
		return NewPOSIX(cfg.Dir), nil
	case config.BlobS3:
		return NewS3(cfg.S3)
	case config.BlobGCS:
		return NewGCS(cfg.GCS)
	case config.BlobAzure:
		return NewAzureBlob(cfg.Azure, cfg.Azure.Container, cfg.Azure.Prefix)
	}
	return nil, errors.NotSupportedf("blob store %s", cfg.Type)
}
