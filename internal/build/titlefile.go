// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package build

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// TitleFile is the on-disk title list produced by enumeration. The user can
// edit it or replace it with a plain text file of one title per line.
type TitleFile struct {
	Source  TitleSource  `yaml:"source"`
	Titles  []string     `yaml:"titles"`
	Summary TitleSummary `yaml:"summary"`
}

// TitleSource records how the titles were enumerated.
type TitleSource struct {
	APIURL    string `yaml:"api_url"`
	Kind      string `yaml:"kind"` // allpages, category, embeddedin
	Name      string `yaml:"name,omitempty"`
	Namespace int    `yaml:"namespace"`
	Limit     int    `yaml:"limit,omitempty"`
}

// TitleSummary stores list statistics and a timestamp.
type TitleSummary struct {
	Total     int       `yaml:"total"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteTitleFile saves an enumerated title list.
func WriteTitleFile(path string, src TitleSource, titles []string) error {
	tf := TitleFile{
		Source: src,
		Titles: titles,
		Summary: TitleSummary{
			Total:     len(titles),
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
	}
	data, err := yaml.Marshal(&tf)
	if err != nil {
		return fmt.Errorf("marshaling title file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadTitles loads titles from a .yaml/.yml title file or from a plain text
// file with one title per line. Blank lines and lines starting with # are
// ignored in plain text.
func ReadTitles(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading title file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var tf TitleFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("parsing title file: %w", err)
		}
		return tf.Titles, nil
	}

	var titles []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		titles = append(titles, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading title file: %w", err)
	}
	return titles, nil
}
