/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"gopkg.in/yaml.v3"
)

// cellsFile is the on-disk layout of GNB_CELLS_FILE.
type cellsFile struct {
	Cells []yaml.Node `yaml:"cells"`
}

// LoadCells reads cell definitions from a YAML file. Fields a cell omits take the
// default numerology and the default random-access parameters. The requests are
// not validated against scheduler sizing; ConfigureCell does that.
func LoadCells(path string, numerology uint8) ([]models.CellConfigRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cells file: %w", err)
	}
	return ParseCells(data, numerology)
}

// ParseCells decodes the cells document held in data.
func ParseCells(data []byte, numerology uint8) ([]models.CellConfigRequest, error) {
	var doc cellsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cells file: %w", err)
	}

	seen := make(map[models.CellIndex]bool, len(doc.Cells))
	out := make([]models.CellConfigRequest, 0, len(doc.Cells))
	for i := range doc.Cells {
		req := models.CellConfigRequest{
			Numerology: numerology,
			RA:         models.DefaultRAConfig(),
		}
		if err := doc.Cells[i].Decode(&req); err != nil {
			return nil, fmt.Errorf("cell #%d (line %d): %w", i, doc.Cells[i].Line, err)
		}
		if seen[req.Index] {
			return nil, fmt.Errorf("cell #%d (line %d): duplicate index %d", i, doc.Cells[i].Line, req.Index)
		}
		seen[req.Index] = true
		out = append(out, req)
	}
	return out, nil
}
