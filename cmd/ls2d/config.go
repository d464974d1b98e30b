/*
Copyright © 2024 the LS2D authors.
This file is part of LS2D.

LS2D is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LS2D is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LS2D.  If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	ls2d "github.com/rhhjanssen/LS2D"
)

// ConfigData holds information about an ls2d configuration.
type ConfigData struct {
	// CentralLat and CentralLon give the location of interest in
	// degrees. The forcings are derived for the reanalysis grid point
	// nearest to this location.
	CentralLat float64
	CentralLon float64

	// StartDate is the beginning of the time window.
	// Format = "YYYYMMDDHH" (UTC).
	StartDate string

	// EndDate is the end of the time window (inclusive).
	// Format = "YYYYMMDDHH" (UTC).
	EndDate string

	// NAveraging is the spatial averaging half-width in grid cells.
	NAveraging int

	// Scheme selects the horizontal discretization of the advective
	// and geostrophic calculations: "box", "2nd" or "4th".
	Scheme string

	// SurfaceFiles, ModelLevelFiles, PressureLevelFiles and
	// ForecastFiles are the paths to the NetCDF files of the four
	// input streams, in chronological order. Paths can include
	// environment variables.
	SurfaceFiles       []string
	ModelLevelFiles    []string
	PressureLevelFiles []string
	ForecastFiles      []string

	// CoefficientFile is the path to a NetCDF file holding the hybrid
	// sigma-pressure half-level coefficients as the hyai and hybi
	// variables. Alternatively the table can be given inline as
	// CoefficientA and CoefficientB, ordered surface first.
	CoefficientFile string
	CoefficientA    []float64
	CoefficientB    []float64

	// OutputFile is the path of the NetCDF forcing file to create. It
	// can include environment variables.
	OutputFile string
}

// ReadConfigFile reads and parses a TOML configuration file.
func ReadConfigFile(filename string) (*ConfigData, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("the configuration file you have specified, %v, does not "+
			"appear to exist. Please check the file name and location and "+
			"try again", filename)
	}
	config := new(ConfigData)
	if _, err := toml.Decode(string(bytes), config); err != nil {
		return nil, fmt.Errorf("there has been an error parsing the configuration file: %v", err)
	}

	expandAll := func(paths []string) {
		for i, p := range paths {
			paths[i] = os.ExpandEnv(p)
		}
	}
	expandAll(config.SurfaceFiles)
	expandAll(config.ModelLevelFiles)
	expandAll(config.PressureLevelFiles)
	expandAll(config.ForecastFiles)
	config.CoefficientFile = os.ExpandEnv(config.CoefficientFile)
	config.OutputFile = os.ExpandEnv(config.OutputFile)

	if config.OutputFile == "" {
		return nil, fmt.Errorf("you need to specify an output file in the configuration file")
	}
	return config, nil
}

// dateFormat is the layout of StartDate and EndDate.
const dateFormat = "2006010215"

// Run derives the forcings specified by config and writes them to the
// output file.
func Run(config *ConfigData) error {
	start, err := time.Parse(dateFormat, config.StartDate)
	if err != nil {
		return fmt.Errorf("parsing StartDate: %v", err)
	}
	end, err := time.Parse(dateFormat, config.EndDate)
	if err != nil {
		return fmt.Errorf("parsing EndDate: %v", err)
	}

	log.WithFields(logrusFields(config)).Info("reading input streams")
	raw, err := ls2d.LoadStreams(config.SurfaceFiles, config.ModelLevelFiles,
		config.PressureLevelFiles, config.ForecastFiles)
	if err != nil {
		return err
	}

	ds, err := ls2d.NewDataset(raw, ls2d.Config{
		Lat:   config.CentralLat,
		Lon:   config.CentralLon,
		Start: start,
		End:   end,
	})
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"start": ls2d.TimeFromHours(ds.Time[0]).Format(time.RFC3339),
		"end":   ls2d.TimeFromHours(ds.Time[len(ds.Time)-1]).Format(time.RFC3339),
		"steps": len(ds.Time),
	}).Info("resolved time window")

	hg, err := hybridGrid(config)
	if err != nil {
		return err
	}

	log.Info("integrating model levels")
	if err := ds.IntegrateLevels(hg); err != nil {
		return err
	}
	if err := ds.DeriveFields(); err != nil {
		return err
	}

	log.Info("calculating forcings")
	fs, err := ds.Forcings(ls2d.ForcingConfig{
		NAv:    config.NAveraging,
		Scheme: config.Scheme,
	})
	if err != nil {
		return err
	}

	log.WithField("file", config.OutputFile).Info("writing output")
	w, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer w.Close()
	return fs.Write(w)
}

// hybridGrid builds the vertical discretization from either the
// coefficient file or the inline coefficient table.
func hybridGrid(config *ConfigData) (*ls2d.HybridGrid, error) {
	if config.CoefficientFile != "" {
		if len(config.CoefficientA) != 0 || len(config.CoefficientB) != 0 {
			return nil, fmt.Errorf("specify either CoefficientFile or the inline CoefficientA/CoefficientB table, not both")
		}
		return ls2d.ReadHybridGrid(config.CoefficientFile)
	}
	return ls2d.NewHybridGrid(config.CoefficientA, config.CoefficientB)
}

func logrusFields(config *ConfigData) logrus.Fields {
	return logrus.Fields{
		"lat":    config.CentralLat,
		"lon":    config.CentralLon,
		"start":  config.StartDate,
		"end":    config.EndDate,
		"scheme": config.Scheme,
	}
}
