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

package ls2d

import (
	"math"
	"testing"
)

func TestNewHybridGrid(t *testing.T) {
	if _, err := NewHybridGrid([]float64{0, 0}, []float64{1}); err == nil {
		t.Error("expected an error for unequal A and B lengths")
	}
	if _, err := NewHybridGrid([]float64{0}, []float64{1}); err == nil {
		t.Error("expected an error for a single half level")
	}
	hg, err := NewHybridGrid([]float64{0, 0, 0, 0}, []float64{1, 0.8, 0.5, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if hg.NFull() != 3 {
		t.Errorf("NFull = %d, want 3", hg.NFull())
	}
}

func TestIntegrateLevels(t *testing.T) {
	const testTolerance = 1e-9

	d, err := NewDataset(testStreams(testFields{u: 5, v: -3}), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.IntegrateLevels(testHybridGrid(t)); err != nil {
		t.Fatal(err)
	}

	// Half-level pressures follow directly from the coefficient table
	// with ps = 1e5 Pa everywhere.
	wantPh := []float64{1e5, 0.8e5, 0.5e5, 0.2e5}
	for k, want := range wantPh {
		if got := d.PHalf.Get(1, k, 3, 3); different(got, want, testTolerance) {
			t.Errorf("half-level pressure %d = %v, want %v", k, got, want)
		}
	}
	// Full levels are the mean of the bounding half levels.
	for k := 0; k < d.nfull; k++ {
		want := 0.5 * (wantPh[k] + wantPh[k+1])
		if got := d.P.Get(1, k, 3, 3); different(got, want, testTolerance) {
			t.Errorf("full-level pressure %d = %v, want %v", k, got, want)
		}
	}

	// Heights follow the hydrostatic recurrence with the layer virtual
	// temperatures.
	if got := d.ZHalf.Get(0, 0, 3, 3); got != 0 {
		t.Errorf("surface height = %v, want 0", got)
	}
	z := 0.0
	for k := 0; k < d.nfull; k++ {
		tv := d.Tv.Get(0, k, 3, 3)
		z += rd * tv * math.Log(wantPh[k]/wantPh[k+1]) / grav
		if got := d.ZHalf.Get(0, k+1, 3, 3); different(got, z, testTolerance) {
			t.Errorf("half-level height %d = %v, want %v", k+1, got, z)
		}
	}
	for k := 1; k < d.nfull; k++ {
		if d.Z.Get(0, k, 3, 3) <= d.Z.Get(0, k-1, 3, 3) {
			t.Errorf("full-level height not increasing at level %d", k)
		}
	}

	// Moist air is lighter: Tv must exceed T for q > 0.
	if tv, tt := d.Tv.Get(0, 1, 3, 3), d.T.Get(0, 1, 3, 3); tv <= tt {
		t.Errorf("Tv = %v not above T = %v", tv, tt)
	}
}

func TestIntegrateLevelsTableMismatch(t *testing.T) {
	d, err := NewDataset(testStreams(testFields{}), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	hg, err := NewHybridGrid([]float64{0, 0, 0}, []float64{1, 0.5, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.IntegrateLevels(hg); err == nil {
		t.Fatal("expected an error for a 2-level table on a 3-level dataset")
	}
	if err := d.IntegrateLevels(nil); err == nil {
		t.Fatal("expected an error for a nil table")
	}
}

func TestIntegrateLevelsDegenerate(t *testing.T) {
	d, err := NewDataset(testStreams(testFields{}), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Constant-with-height sigma coefficients give a non-decreasing
	// pressure profile.
	hg, err := NewHybridGrid([]float64{0, 0, 0, 0}, []float64{1, 1, 0.5, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.IntegrateLevels(hg); err == nil {
		t.Fatal("expected an error for non-decreasing half-level pressure")
	}

	// A negative temperature gives a negative virtual temperature.
	d.T.Set(-10, 1, 1, 2, 2)
	if err := d.IntegrateLevels(testHybridGrid(t)); err == nil {
		t.Fatal("expected an error for non-positive virtual temperature")
	}
}
