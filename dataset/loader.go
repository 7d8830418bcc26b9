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
	"archive/zip"
	"bufio"
	"context"
	"database/sql"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorse-io/toprec/base"
	"github.com/gorse-io/toprec/base/log"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultDataDir returns the directory where built-in datasets are downloaded.
func DefaultDataDir() string {
	usr, err := user.Current()
	if err != nil {
		log.Logger().Fatal("failed to get user directory", zap.Error(err))
	}
	return filepath.Join(usr.HomeDir, ".toprec", "dataset")
}

type builtInDataset struct {
	url  string
	file string
	sep  string
}

var builtInDatasets = map[string]builtInDataset{
	"ml-100k": {
		url:  "https://files.grouplens.org/datasets/movielens/ml-100k.zip",
		file: "ml-100k/u.data",
		sep:  "\t",
	},
	"ml-1m": {
		url:  "https://files.grouplens.org/datasets/movielens/ml-1m.zip",
		file: "ml-1m/ratings.dat",
		sep:  "::",
	},
}

// LoadBuiltIn downloads (if absent) and loads a built-in dataset.
func LoadBuiltIn(name, dataDir string) ([]Rating, error) {
	info, exist := builtInDatasets[name]
	if !exist {
		return nil, errors.NotFoundf("built-in dataset %s", name)
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	path := filepath.Join(dataDir, info.file)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zipFileName, err := downloadFromUrl(info.url, filepath.Join(dataDir, "temp"))
		if err != nil {
			return nil, errors.Trace(err)
		}
		if _, err = unzip(zipFileName, dataDir); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return LoadFile(path, info.sep, false)
}

// LoadFile loads ratings from a delimited text file. Each line is
// <user><sep><item><sep><rating>[<sep>...], trailing fields are ignored.
func LoadFile(path, sep string, header bool) ([]Rating, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return parseRatings(file, sep, header)
}

func parseRatings(r io.Reader, sep string, header bool) ([]Rating, error) {
	if sep == "" {
		return nil, errors.NotValidf("empty separator")
	}
	var ratings []Rating
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if (header && lineNumber == 1) || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, errors.NotValidf("line %d: %q", lineNumber, line)
		}
		rating, err := parseRating(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		ratings = append(ratings, rating)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}

func parseRating(userId, itemId, value string) (Rating, error) {
	userId, itemId = strings.TrimSpace(userId), strings.TrimSpace(itemId)
	if err := base.ValidateId(userId); err != nil {
		return Rating{}, errors.Trace(err)
	}
	if err := base.ValidateId(itemId); err != nil {
		return Rating{}, errors.Trace(err)
	}
	rating, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return Rating{}, errors.NotValidf("rating %q", value)
	}
	return Rating{UserId: userId, ItemId: itemId, Rating: rating}, nil
}

// LoadSQLite loads ratings from a SQLite database. The query must return three columns:
// user id, item id and an integer rating.
func LoadSQLite(ctx context.Context, path, query string) ([]Rating, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var ratings []Rating
	for rows.Next() {
		var userId, itemId, value string
		if err = rows.Scan(&userId, &itemId, &value); err != nil {
			return nil, errors.Trace(err)
		}
		rating, err := parseRating(userId, itemId, value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, errors.Trace(rows.Err())
}

// downloadFromUrl downloads file from URL.
func downloadFromUrl(src, dst string) (string, error) {
	log.Logger().Info("download dataset", zap.String("source", src), zap.String("destination", dst))
	// Extract file name
	tokens := strings.Split(src, "/")
	fileName := filepath.Join(dst, tokens[len(tokens)-1])
	// Create file
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return fileName, errors.Trace(err)
	}
	output, err := os.Create(fileName)
	if err != nil {
		log.Logger().Error("failed to create file", zap.Error(err), zap.String("filename", fileName))
		return fileName, errors.Trace(err)
	}
	defer output.Close()
	// Download file
	response, err := http.Get(src)
	if err != nil {
		log.Logger().Error("failed to download", zap.Error(err), zap.String("source", src))
		return fileName, errors.Trace(err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fileName, errors.Errorf("failed to download %s: %s", src, response.Status)
	}
	// Save file
	bar := progressbar.DefaultBytes(response.ContentLength, "downloading "+tokens[len(tokens)-1])
	_, err = io.Copy(io.MultiWriter(output, bar), response.Body)
	if err != nil {
		log.Logger().Error("failed to download", zap.Error(err), zap.String("source", src))
		return fileName, errors.Trace(err)
	}
	return fileName, nil
}

// unzip zip file.
func unzip(src, dst string) ([]string, error) {
	var fileNames []string
	// Open zip file
	r, err := zip.OpenReader(src)
	if err != nil {
		return fileNames, errors.Trace(err)
	}
	defer r.Close()
	// Extract files
	for _, f := range r.File {
		// Store filename/path for returning and using later on
		filePath := filepath.Join(dst, f.Name)
		// Check for ZipSlip. More Info: http://bit.ly/2MsjAWE
		if !strings.HasPrefix(filePath, filepath.Clean(dst)+string(os.PathSeparator)) {
			return fileNames, errors.NotValidf("file path %s", filePath)
		}
		// Add filename
		fileNames = append(fileNames, filePath)
		if f.FileInfo().IsDir() {
			// Create folder
			if err = os.MkdirAll(filePath, os.ModePerm); err != nil {
				return fileNames, errors.Trace(err)
			}
			continue
		}
		if err = extractFile(f, filePath); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return fileNames, nil
}

func extractFile(f *zip.File, filePath string) error {
	// Create all folders
	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Trace(err)
	}
	defer rc.Close()
	outFile, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = io.Copy(outFile, rc); err != nil {
		_ = outFile.Close()
		return errors.Trace(err)
	}
	return errors.Trace(outFile.Close())
}
