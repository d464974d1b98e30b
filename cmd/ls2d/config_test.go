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
	"os"
	"path/filepath"
	"testing"
)

const testConfigToml = `
CentralLat = 51.97
CentralLon = 4.93
StartDate = "2016050106"
EndDate = "2016050118"
NAveraging = 1
Scheme = "2nd"
SurfaceFiles = ["$LS2D_TEST_DIR/sfc.nc"]
ModelLevelFiles = ["model.nc"]
PressureLevelFiles = ["pres.nc"]
ForecastFiles = ["fc.nc"]
CoefficientFile = "coefficients.nc"
OutputFile = "forcings.nc"
`

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ls2d.toml")
	if err := os.WriteFile(path, []byte(testConfigToml), 0644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("LS2D_TEST_DIR", "/data")
	defer os.Unsetenv("LS2D_TEST_DIR")

	cfg, err := ReadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CentralLat != 51.97 || cfg.CentralLon != 4.93 {
		t.Errorf("location = (%v, %v)", cfg.CentralLat, cfg.CentralLon)
	}
	if cfg.NAveraging != 1 || cfg.Scheme != "2nd" {
		t.Errorf("averaging = %d, scheme = %q", cfg.NAveraging, cfg.Scheme)
	}
	// Environment variables expand in paths.
	if got := cfg.SurfaceFiles[0]; got != "/data/sfc.nc" {
		t.Errorf("surface file = %q", got)
	}
	if cfg.OutputFile != "forcings.nc" {
		t.Errorf("output file = %q", cfg.OutputFile)
	}
}

func TestReadConfigFileMissing(t *testing.T) {
	if _, err := ReadConfigFile(filepath.Join(t.TempDir(), "nonexistent.toml")); err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}

func TestReadConfigFileNoOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ls2d.toml")
	if err := os.WriteFile(path, []byte("CentralLat = 52.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadConfigFile(path); err == nil {
		t.Fatal("expected an error for a configuration without an output file")
	}
}
