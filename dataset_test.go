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
	"time"

	"github.com/ctessum/sparse"
)

// Synthetic test grid: 3 hourly time steps on a 7x7 0.25° grid around
// (52°N, 5°E), with 3 model levels and 5 pressure levels.
const (
	testNT    = 3
	testNLev  = 3
	testNLat  = 7
	testNLon  = 7
	testNPres = 5
)

var testStart = time.Date(2016, time.May, 1, 0, 0, 0, 0, time.UTC)

// testFields parameterizes the synthetic input data. Gradients are per
// grid cell in the normalized orientation (latitude ascending, level 0
// at the surface).
type testFields struct {
	u, v           float64 // constant wind components
	tGradI, tGradJ float64 // temperature gradient [K/cell]
	qGradI         float64 // humidity gradient [kg kg-1/cell]
	zGradI         float64 // pressure-level height gradient [m/cell]
}

// fill4 builds a (time, level, lat, lon) array in the archive
// orientation (top first, north first) from a function of normalized
// indices.
func fill4(nlev int, f func(t, k, j, i int) float64) *sparse.DenseArray {
	a := sparse.ZerosDense(testNT, nlev, testNLat, testNLon)
	for t := 0; t < testNT; t++ {
		for k := 0; k < nlev; k++ {
			for j := 0; j < testNLat; j++ {
				for i := 0; i < testNLon; i++ {
					a.Set(f(t, nlev-1-k, testNLat-1-j, i), t, k, j, i)
				}
			}
		}
	}
	return a
}

// fill3 is fill4 for (time, lat, lon) arrays.
func fill3(f func(t, j, i int) float64) *sparse.DenseArray {
	a := sparse.ZerosDense(testNT, testNLat, testNLon)
	for t := 0; t < testNT; t++ {
		for j := 0; j < testNLat; j++ {
			for i := 0; i < testNLon; i++ {
				a.Set(f(t, testNLat-1-j, i), t, j, i)
			}
		}
	}
	return a
}

func constant4(nlev int, v float64) *sparse.DenseArray {
	return fill4(nlev, func(t, k, j, i int) float64 { return v })
}

func constant3(v float64) *sparse.DenseArray {
	return fill3(func(t, j, i int) float64 { return v })
}

// testTemperature is the synthetic temperature field in normalized
// orientation.
func testTemperature(p testFields, k, j, i int) float64 {
	return 288 - 5*float64(k) + p.tGradI*float64(i) + p.tGradJ*float64(j)
}

// testStreams builds the four raw input streams in the archive
// orientation.
func testStreams(p testFields) *RawStreams {
	times := make([]float64, testNT)
	for t := range times {
		times[t] = hoursSince1900(testStart) + float64(t)
	}
	// North first, as delivered.
	lats := make([]float64, testNLat)
	for j := range lats {
		lats[j] = 52.75 - 0.25*float64(j)
	}
	lons := make([]float64, testNLon)
	for i := range lons {
		lons[i] = 4.25 + 0.25*float64(i)
	}
	modelLevels := make([]float64, testNLev)
	for k := range modelLevels {
		modelLevels[k] = float64(k + 1)
	}
	presLevels := []float64{500, 700, 850, 925, 1000} // hPa, top first

	model := &Stream{
		Time: append([]float64{}, times...), Levels: modelLevels,
		Lats: append([]float64{}, lats...), Lons: append([]float64{}, lons...),
		Vars: map[string]*sparse.DenseArray{
			"u": constant4(testNLev, p.u),
			"v": constant4(testNLev, p.v),
			"w": constant4(testNLev, 0.05),
			"t": fill4(testNLev, func(t, k, j, i int) float64 {
				return testTemperature(p, k, j, i)
			}),
			"q": fill4(testNLev, func(t, k, j, i int) float64 {
				return 0.008 + p.qGradI*float64(i)
			}),
			"clwc": constant4(testNLev, 0),
			"ciwc": constant4(testNLev, 0),
			"crwc": constant4(testNLev, 0),
			"cswc": constant4(testNLev, 0),
			"lnsp": constant4(1, math.Log(1e5)),
		},
	}
	forecast := &Stream{
		Time: append([]float64{}, times...), Levels: modelLevels,
		Lats: append([]float64{}, lats...), Lons: append([]float64{}, lons...),
		Vars: map[string]*sparse.DenseArray{
			"mttswr":   constant4(testNLev, 1.5e-5),
			"mttlwr":   constant4(testNLev, -2.5e-5),
			"mttswrcs": constant4(testNLev, 1.0e-5),
			"mttlwrcs": constant4(testNLev, -2.0e-5),
		},
	}
	surface := &Stream{
		Time: append([]float64{}, times...),
		Lats: append([]float64{}, lats...), Lons: append([]float64{}, lons...),
		Vars: map[string]*sparse.DenseArray{
			"skt":  constant3(290),
			"ishf": constant3(-100),
			"ie":   constant3(-5e-5),
			"tcc":  constant3(0.4),
			"fsr":  constant3(0.1),
			"flsr": constant3(math.Log(0.01)),
		},
	}
	pressure := &Stream{
		Time: append([]float64{}, times...), Levels: presLevels,
		Lats: append([]float64{}, lats...), Lons: append([]float64{}, lons...),
		Vars: map[string]*sparse.DenseArray{
			"z": fill4(testNPres, func(t, k, j, i int) float64 {
				return (50 + 800*float64(k) + p.zGradI*float64(i)) * grav
			}),
		},
	}
	return &RawStreams{Surface: surface, Model: model, Pressure: pressure, Forecast: forecast}
}

func testConfig() Config {
	return Config{Lat: 52, Lon: 5, Start: testStart, End: testStart.Add(2 * time.Hour)}
}

// testHybridGrid is a 3-full-level sigma grid with half-level
// pressures {1, 0.8, 0.5, 0.2}·ps.
func testHybridGrid(t *testing.T) *HybridGrid {
	hg, err := NewHybridGrid([]float64{0, 0, 0, 0}, []float64{1, 0.8, 0.5, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	return hg
}

func TestNewDataset(t *testing.T) {
	const testTolerance = 1e-10

	d, err := NewDataset(testStreams(testFields{u: 5, v: -3, tGradI: 0.5}), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if d.nt != testNT || d.nfull != testNLev || d.nlat != testNLat || d.nlon != testNLon {
		t.Fatalf("dimensions = (%d, %d, %d, %d)", d.nt, d.nfull, d.nlat, d.nlon)
	}
	for j := 1; j < d.nlat; j++ {
		if d.Lats[j] <= d.Lats[j-1] {
			t.Errorf("latitude not ascending at index %d", j)
		}
	}
	if d.Point.I != 3 || d.Point.J != 3 {
		t.Errorf("nearest cell = (%d, %d), want (3, 3)", d.Point.I, d.Point.J)
	}
	if d.Point.Actual.X != 5 || d.Point.Actual.Y != 52 {
		t.Errorf("cell center = (%v, %v), want (5, 52)", d.Point.Actual.X, d.Point.Actual.Y)
	}
	if off := d.Point.Offset.Value(); off > 1e-6 {
		t.Errorf("offset = %v m for an exact match", off)
	}

	// The temperature field is defined in normalized orientation, so a
	// correctly normalized dataset reproduces it directly.
	for _, idx := range [][2]int{{0, 0}, {2, 6}, {1, 3}} {
		k, i := idx[0], idx[1]
		want := testTemperature(testFields{tGradI: 0.5}, k, 2, i)
		if got := d.T.Get(1, k, 2, i); math.Abs(got-want) > testTolerance {
			t.Errorf("T(1, %d, 2, %d) = %v, want %v", k, i, got, want)
		}
	}

	if ps := d.Ps.Get(0, 3, 3); math.Abs(ps-1e5) > 1e-4 {
		t.Errorf("surface pressure = %v, want 1e5", ps)
	}
	// Downward-positive archive fluxes come out upward positive.
	if hf := d.SensibleHF.Get(0, 3, 3); hf != 100 {
		t.Errorf("sensible heat flux = %v, want 100", hf)
	}
	if z0h := d.Z0H.Get(0, 3, 3); math.Abs(z0h-0.01) > testTolerance {
		t.Errorf("z0h = %v, want 0.01", z0h)
	}
	// Pressure levels: Pa, surface-most first.
	if d.PPres[0] != 1000e2 || d.PPres[testNPres-1] != 500e2 {
		t.Errorf("pressure levels = %v", d.PPres)
	}
	if w := d.ZPres.Get(0, 0, 3, 3); math.Abs(w-(50+0*800)) > 1e-9 {
		t.Errorf("surface-most pressure level height = %v, want 50", w)
	}
}

func TestNewDatasetWindow(t *testing.T) {
	c := testConfig()
	c.Start = testStart.Add(1 * time.Hour)
	c.End = testStart.Add(1 * time.Hour)
	d, err := NewDataset(testStreams(testFields{}), c)
	if err != nil {
		t.Fatal(err)
	}
	if d.nt != 1 {
		t.Fatalf("nt = %d, want 1", d.nt)
	}
	if want := hoursSince1900(c.Start); d.Time[0] != want {
		t.Errorf("time = %v, want %v", d.Time[0], want)
	}
	if d.TimeSec[0] != 0 {
		t.Errorf("time_sec = %v, want 0", d.TimeSec[0])
	}
}

func TestNewDatasetOutsideSpan(t *testing.T) {
	c := testConfig()
	c.Start = testStart.Add(-24 * time.Hour)
	if _, err := NewDataset(testStreams(testFields{}), c); err == nil {
		t.Fatal("expected an error for a window before the available span")
	}
	c = testConfig()
	c.End = testStart.Add(48 * time.Hour)
	if _, err := NewDataset(testStreams(testFields{}), c); err == nil {
		t.Fatal("expected an error for a window past the available span")
	}
}

func TestNewDatasetTimeMismatch(t *testing.T) {
	streams := testStreams(testFields{})
	// Two-hourly forecast output cannot be synced with hourly analyses.
	for i := range streams.Forecast.Time {
		streams.Forecast.Time[i] = streams.Forecast.Time[0] + 2*float64(i)
	}
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for unsynced analysis and forecast times")
	}
}

func TestNewDatasetGridMismatch(t *testing.T) {
	// A surface grid shifted by one cell lines up index-wise but not
	// physically.
	streams := testStreams(testFields{})
	for j := range streams.Surface.Lats {
		streams.Surface.Lats[j] += 0.25
	}
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for a shifted surface grid")
	}

	// A surface stream on a smaller grid than the analyses.
	streams = testStreams(testFields{})
	sub := streams.Surface
	sub.Lats = sub.Lats[:testNLat-2]
	sub.Lons = sub.Lons[:testNLon-2]
	for name := range sub.Vars {
		sub.Vars[name] = sparse.ZerosDense(testNT, testNLat-2, testNLon-2)
	}
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for an undersized surface grid")
	}

	// The pressure-level and forecast grids are held to the same check.
	streams = testStreams(testFields{})
	streams.Pressure.Lons[0] -= 0.25
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for a mismatched pressure-level grid")
	}
	streams = testStreams(testFields{})
	streams.Forecast.Lats[0] += 0.25
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for a mismatched forecast grid")
	}

	// A variable whose shape disagrees with its own stream coordinates.
	streams = testStreams(testFields{})
	streams.Surface.Vars["skt"] = sparse.ZerosDense(testNT, testNLat-2, testNLon-2)
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for a surface variable on a smaller grid")
	}
}

func TestNewDatasetMissingStream(t *testing.T) {
	streams := testStreams(testFields{})
	streams.Pressure = nil
	if _, err := NewDataset(streams, testConfig()); err == nil {
		t.Fatal("expected an error for a missing stream")
	}
}

func TestTimeFromHours(t *testing.T) {
	for _, c := range []struct {
		h    float64
		want time.Time
	}{
		{0, time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{hoursSince1900(testStart), testStart},
		{hoursSince1900(testStart) + 1.5, testStart.Add(90 * time.Minute)},
	} {
		if got := TimeFromHours(c.h); !got.Equal(c.want) {
			t.Errorf("TimeFromHours(%v) = %v, want %v", c.h, got, c.want)
		}
	}
}

func TestNearestIndex(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	for _, c := range []struct {
		v    float64
		want int
	}{{0.2, 0}, {1.4, 0}, {2.6, 2}, {2.5, 1}, {9, 3}} {
		if got := nearestIndex(xs, c.v); got != c.want {
			t.Errorf("nearestIndex(%v) = %d, want %d", c.v, got, c.want)
		}
	}
}
