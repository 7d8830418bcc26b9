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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/toprec/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration of an experiment.
type Config struct {
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Model      ModelConfig      `mapstructure:"model"`
	Evaluate   EvaluateConfig   `mapstructure:"evaluate"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	History    HistoryConfig    `mapstructure:"history"`
}

// DatasetConfig selects the rating source. A delimited file (path) takes precedence over a
// SQLite database, which takes precedence over a built-in dataset (name).
type DatasetConfig struct {
	Name      string  `mapstructure:"name" validate:"omitempty,oneof=ml-100k ml-1m"`
	DataDir   string  `mapstructure:"data_dir"`
	Path      string  `mapstructure:"path"`
	Sep       string  `mapstructure:"sep" validate:"required_with=Path"`
	Header    bool    `mapstructure:"header"`
	SQLite    string  `mapstructure:"sqlite"`
	Query     string  `mapstructure:"query" validate:"required_with=SQLite"`
	Filter    string  `mapstructure:"filter"`
	TestRatio float64 `mapstructure:"test_ratio" validate:"gte=0,lt=1"`
	Seed      int64   `mapstructure:"seed"`
}

type ModelConfig struct {
	Type        string  `mapstructure:"type" validate:"oneof=user_cf item_cf lfm most_popular random"`
	NNeighbors  int     `mapstructure:"n_neighbors" validate:"gt=0"`
	Discount    bool    `mapstructure:"discount"`
	UseRating   *bool   `mapstructure:"use_rating"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
}

// GetParams returns the hyper-parameters used by the configured model type.
func (c *ModelConfig) GetParams() model.Params {
	params := model.Params{}
	switch c.Type {
	case "user_cf", "item_cf":
		params[model.NNeighbors] = c.NNeighbors
		params[model.Discount] = c.Discount
		if c.UseRating != nil {
			params[model.UseRating] = *c.UseRating
		}
	case "lfm":
		params[model.NFactors] = c.NFactors
		params[model.NEpochs] = c.NEpochs
		params[model.Lr] = c.Lr
		params[model.Reg] = c.Reg
		params[model.RandomState] = c.RandomState
	case "random":
		params[model.RandomState] = c.RandomState
	}
	return params
}

type EvaluateConfig struct {
	TopN int `mapstructure:"top_n" validate:"gt=0"`
	Jobs int `mapstructure:"jobs" validate:"gt=0"`
}

// CheckpointConfig configures where fitted models are persisted.
type CheckpointConfig struct {
	Enable bool            `mapstructure:"enable"`
	Type   string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir    string          `mapstructure:"dir" validate:"required_if=Type posix"`
	S3     S3Config        `mapstructure:"s3"`
	GCS    GCSConfig       `mapstructure:"gcs"`
	Azure  AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// HistoryConfig configures the database recording evaluated runs. Runs aren't recorded if path is empty.
type HistoryConfig struct {
	Path string `mapstructure:"path" validate:"omitempty,startswith=sqlite://"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Name:      "ml-100k",
			Sep:       "\t",
			Query:     "SELECT user_id, item_id, rating FROM ratings",
			TestRatio: 0.3,
		},
		Model: ModelConfig{
			Type:       "user_cf",
			NNeighbors: 20,
			NFactors:   100,
			NEpochs:    5,
			Lr:         0.02,
			Reg:        0.01,
		},
		Evaluate: EvaluateConfig{
			TopN: 10,
			Jobs: 1,
		},
		Checkpoint: CheckpointConfig{
			Type: BlobPOSIX,
			Dir:  "model",
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	viper.SetDefault("dataset.name", defaultConfig.Dataset.Name)
	viper.SetDefault("dataset.sep", defaultConfig.Dataset.Sep)
	viper.SetDefault("dataset.query", defaultConfig.Dataset.Query)
	viper.SetDefault("dataset.test_ratio", defaultConfig.Dataset.TestRatio)
	// [model]
	viper.SetDefault("model.type", defaultConfig.Model.Type)
	viper.SetDefault("model.n_neighbors", defaultConfig.Model.NNeighbors)
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	viper.SetDefault("model.lr", defaultConfig.Model.Lr)
	viper.SetDefault("model.reg", defaultConfig.Model.Reg)
	// [evaluate]
	viper.SetDefault("evaluate.top_n", defaultConfig.Evaluate.TopN)
	viper.SetDefault("evaluate.jobs", defaultConfig.Evaluate.Jobs)
	// [checkpoint]
	viper.SetDefault("checkpoint.type", defaultConfig.Checkpoint.Type)
	viper.SetDefault("checkpoint.dir", defaultConfig.Checkpoint.Dir)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML file. Environment variables prefixed by TOPREC_ override values in
// the file. Defaults are used if path is empty.
func LoadConfig(path string) (*Config, error) {
	// set default config
	setDefault()

	// bind environment bindings
	bindings := []configBinding{
		{"dataset.name", "TOPREC_DATASET_NAME"},
		{"dataset.data_dir", "TOPREC_DATASET_DATA_DIR"},
		{"dataset.path", "TOPREC_DATASET_PATH"},
		{"dataset.sqlite", "TOPREC_DATASET_SQLITE"},
		{"dataset.filter", "TOPREC_DATASET_FILTER"},
		{"dataset.test_ratio", "TOPREC_DATASET_TEST_RATIO"},
		{"dataset.seed", "TOPREC_DATASET_SEED"},
		{"model.type", "TOPREC_MODEL_TYPE"},
		{"evaluate.top_n", "TOPREC_EVALUATE_TOP_N"},
		{"evaluate.jobs", "TOPREC_EVALUATE_JOBS"},
		{"checkpoint.enable", "TOPREC_CHECKPOINT_ENABLE"},
		{"checkpoint.type", "TOPREC_CHECKPOINT_TYPE"},
		{"checkpoint.dir", "TOPREC_CHECKPOINT_DIR"},
		{"checkpoint.s3.endpoint", "TOPREC_S3_ENDPOINT"},
		{"checkpoint.s3.access_key_id", "TOPREC_S3_ACCESS_KEY_ID"},
		{"checkpoint.s3.secret_access_key", "TOPREC_S3_SECRET_ACCESS_KEY"},
		{"checkpoint.gcs.credentials_file", "TOPREC_GCS_CREDENTIALS_FILE"},
		{"checkpoint.azure.connection_string", "TOPREC_AZURE_CONNECTION_STRING"},
		{"checkpoint.azure.account_key", "TOPREC_AZURE_ACCOUNT_KEY"},
		{"history.path", "TOPREC_HISTORY_PATH"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// load config file
	if path != "" {
		viper.SetConfigType("toml")
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks field constraints and the credentials of the selected checkpoint store.
func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	if !config.Checkpoint.Enable {
		return nil
	}
	var missing []string
	switch config.Checkpoint.Type {
	case BlobS3:
		if config.Checkpoint.S3.Endpoint == "" {
			missing = append(missing, "checkpoint.s3.endpoint")
		}
		if config.Checkpoint.S3.Bucket == "" {
			missing = append(missing, "checkpoint.s3.bucket")
		}
	case BlobGCS:
		if config.Checkpoint.GCS.Bucket == "" {
			missing = append(missing, "checkpoint.gcs.bucket")
		}
	case BlobAzure:
		if config.Checkpoint.Azure.Container == "" {
			missing = append(missing, "checkpoint.azure.container")
		}
	}
	if len(missing) > 0 {
		return errors.NotValidf("checkpoint without %s", strings.Join(missing, ", "))
	}
	return nil
}
