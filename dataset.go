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
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
	"github.com/gonum/floats"
)

// era5Epoch is the reference epoch of the ERA5 time coordinate, which
// counts hours since 1900-01-01 00:00 UTC.
var era5Epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// hoursSince1900 converts t to the ERA5 time coordinate.
func hoursSince1900(t time.Time) float64 {
	return t.UTC().Sub(era5Epoch).Hours()
}

// TimeFromHours converts a value of the ERA5 time coordinate (hours
// since 1900-01-01 00:00 UTC) back to a time.Time.
func TimeFromHours(h float64) time.Time {
	return era5Epoch.Add(time.Duration(h * float64(time.Hour)))
}

// A Stream holds one time-merged raw data stream on a regular
// latitude/longitude grid. Latitude is ordered north to south and
// level-indexed variables are ordered top to bottom, as delivered by
// the archive; NewDataset normalizes both orderings.
type Stream struct {
	// Time is hours since 1900-01-01 00:00 UTC.
	Time []float64
	// Levels is the vertical coordinate (model level numbers, or
	// pressure levels in hPa). Nil for surface streams.
	Levels []float64
	Lats   []float64
	Lons   []float64
	// Vars holds the variables by their archive names. Dimensions are
	// (time, lat, lon) or (time, level, lat, lon).
	Vars map[string]*sparse.DenseArray
}

// RawStreams holds the four data streams the derivation consumes.
type RawStreams struct {
	// Surface is the surface analysis stream.
	Surface *Stream
	// Model is the model-level analysis stream.
	Model *Stream
	// Pressure is the pressure-level analysis stream.
	Pressure *Stream
	// Forecast is the model-level forecast stream.
	Forecast *Stream
}

// Config specifies the location and time window a Dataset is built for.
// Start and End are rounded down to whole hours.
type Config struct {
	// Lat and Lon give the location of interest in degrees.
	Lat, Lon float64

	Start, End time.Time
}

// A GridPoint is the grid cell nearest to a requested location.
type GridPoint struct {
	// I and J are the longitude and latitude indices of the cell.
	I, J int
	// Requested and Actual are the requested location and the cell
	// center (X is longitude, Y is latitude).
	Requested, Actual geom.Point
	// Offset is the great-circle distance between the two.
	Offset *unit.Unit
}

// A Dataset is an in-memory ERA5 dataset clipped to a requested time
// window, with axis ordering normalized so that level index 0 is the
// surface-most level and latitude ascends with index. Fields are
// created once and never mutated afterwards.
type Dataset struct {
	Config Config
	Point  GridPoint

	// Time is hours since 1900-01-01 00:00 UTC; TimeSec counts seconds
	// from the first time step.
	Time    []float64
	TimeSec []float64
	Lats    []float64
	Lons    []float64

	nt, nfull, nlat, nlon int

	// Model-level analysis fields (time, level, lat, lon).
	U  *sparse.DenseArray // u-component wind [m s-1]
	V  *sparse.DenseArray // v-component wind [m s-1]
	W  *sparse.DenseArray // pressure-coordinate vertical velocity [Pa s-1]
	T  *sparse.DenseArray // absolute temperature [K]
	Q  *sparse.DenseArray // specific humidity [kg kg-1]
	Qc *sparse.DenseArray // cloud liquid water [kg kg-1]
	Qi *sparse.DenseArray // cloud ice [kg kg-1]
	Qr *sparse.DenseArray // rain water [kg kg-1]
	Qs *sparse.DenseArray // snow [kg kg-1]
	Ql *sparse.DenseArray // total condensate [kg kg-1]
	Qt *sparse.DenseArray // total specific humidity [kg kg-1]
	Ps *sparse.DenseArray // surface pressure [Pa]

	// Forecast radiative temperature tendencies (time, level, lat, lon) [K s-1].
	DTSW, DTLW, DTSWClear, DTLWClear *sparse.DenseArray

	// Surface analysis fields (time, lat, lon).
	Ts           *sparse.DenseArray // skin temperature [K]
	SensibleHF   *sparse.DenseArray // surface sensible heat flux, positive upward [W m-2]
	MoistureFlux *sparse.DenseArray // surface moisture mass flux, positive upward [kg m-2 s-1]
	CloudCover   *sparse.DenseArray // total cloud cover [-]
	Z0M          *sparse.DenseArray // roughness length for momentum [m]
	Z0H          *sparse.DenseArray // roughness length for heat [m]

	// Pressure-level analysis.
	ZPres *sparse.DenseArray // geopotential height on pressure levels [m]
	PPres []float64          // pressure level values, surface-most first [Pa]

	// Set by IntegrateLevels.
	Tv    *sparse.DenseArray // virtual temperature on full levels [K]
	PHalf *sparse.DenseArray // half-level pressure [Pa]
	ZHalf *sparse.DenseArray // half-level height [m]
	P     *sparse.DenseArray // full-level pressure [Pa]
	Z     *sparse.DenseArray // full-level height [m]

	// Set by DeriveFields.
	Exner     *sparse.DenseArray // Exner function [-]
	Theta     *sparse.DenseArray // potential temperature [K]
	ThetaL    *sparse.DenseArray // liquid-water potential temperature [K]
	Rho       *sparse.DenseArray // density on full levels [kg m-3]
	WHeight   *sparse.DenseArray // height-coordinate vertical velocity, positive up [m s-1]
	WindSpeed *sparse.DenseArray // horizontal wind speed [m s-1]

	TvSurf    *sparse.DenseArray // surface virtual temperature [K]
	RhoSurf   *sparse.DenseArray // surface density [kg m-3]
	ExnerSurf *sparse.DenseArray // Exner function at the surface [-]
	WTh       *sparse.DenseArray // surface kinematic heat flux [K m s-1]
	WQ        *sparse.DenseArray // surface kinematic moisture flux [kg kg-1 m s-1]

	// Forecast radiative tendencies converted to θl (time, level, lat, lon) [K s-1].
	DThlSW, DThlLW, DThlSWClear, DThlLWClear *sparse.DenseArray

	// F is the Coriolis parameter at the requested latitude [s-1].
	F float64
}

// NewDataset assembles a Dataset from the given raw streams, clipped
// to the time window in c. The analysis and forecast time coordinates
// must be identical over the resolved window; a mismatch is an
// integrity error. The nearest-cell location match is logged together
// with its great-circle offset.
func NewDataset(streams *RawStreams, c Config) (*Dataset, error) {
	if streams == nil {
		return nil, fmt.Errorf("ls2d: nil raw streams")
	}
	for _, s := range []struct {
		name   string
		stream *Stream
	}{
		{"surface analysis", streams.Surface},
		{"model-level analysis", streams.Model},
		{"pressure-level analysis", streams.Pressure},
		{"model-level forecast", streams.Forecast},
	} {
		if s.stream == nil {
			return nil, fmt.Errorf("ls2d: missing %s stream", s.name)
		}
	}

	start := c.Start.UTC().Truncate(time.Hour)
	end := c.End.UTC().Truncate(time.Hour)
	if end.Before(start) {
		return nil, fmt.Errorf("ls2d: end time %v is before start time %v", end, start)
	}
	startH, endH := hoursSince1900(start), hoursSince1900(end)

	ma, fc := streams.Model, streams.Forecast
	t0, t1, err := windowIndices(ma.Time, startH, endH)
	if err != nil {
		return nil, fmt.Errorf("ls2d: model-level analysis stream: %v", err)
	}
	f0, f1, err := windowIndices(fc.Time, startH, endH)
	if err != nil {
		return nil, fmt.Errorf("ls2d: model-level forecast stream: %v", err)
	}
	s0, s1, err := windowIndices(streams.Surface.Time, startH, endH)
	if err != nil {
		return nil, fmt.Errorf("ls2d: surface analysis stream: %v", err)
	}
	p0, p1, err := windowIndices(streams.Pressure.Time, startH, endH)
	if err != nil {
		return nil, fmt.Errorf("ls2d: pressure-level analysis stream: %v", err)
	}

	// The forecast and all analysis streams must be sampled at exactly
	// the same times over the window; downstream consumers require one
	// consistent series.
	if err := sameTimes(ma.Time[t0:t1+1], fc.Time[f0:f1+1], "analysis", "forecast"); err != nil {
		return nil, err
	}
	if err := sameTimes(ma.Time[t0:t1+1], streams.Surface.Time[s0:s1+1], "model-level analysis", "surface analysis"); err != nil {
		return nil, err
	}
	if err := sameTimes(ma.Time[t0:t1+1], streams.Pressure.Time[p0:p1+1], "model-level analysis", "pressure-level analysis"); err != nil {
		return nil, err
	}

	// All four streams must be delivered on one horizontal grid; a
	// stream on a shifted or resized grid would place every surface
	// and pressure-level value at the wrong physical location.
	if err := sameGrid(ma, streams.Surface, "model-level analysis", "surface analysis"); err != nil {
		return nil, err
	}
	if err := sameGrid(ma, streams.Pressure, "model-level analysis", "pressure-level analysis"); err != nil {
		return nil, err
	}
	if err := sameGrid(ma, fc, "model-level analysis", "model-level forecast"); err != nil {
		return nil, err
	}

	d := &Dataset{Config: c}
	d.Time = append([]float64{}, ma.Time[t0:t1+1]...)
	d.TimeSec = make([]float64, len(d.Time))
	for i, h := range d.Time {
		d.TimeSec[i] = (h - d.Time[0]) * 3600
	}
	// Grids are ordered north to south at the source; flip so latitude
	// ascends with index, matching the flipped field arrays.
	d.Lats = flip1(ma.Lats)
	d.Lons = append([]float64{}, ma.Lons...)

	d.nt = len(d.Time)
	d.nlat = len(d.Lats)
	d.nlon = len(d.Lons)

	// Locate the nearest grid cell per axis. The offset is reported as
	// a diagnostic; a large offset is not an error.
	i := nearestIndex(d.Lons, c.Lon)
	j := nearestIndex(d.Lats, c.Lat)
	offset := haversine(d.Lats[j], d.Lons[i], c.Lat, c.Lon)
	d.Point = GridPoint{
		I:         i,
		J:         j,
		Requested: geom.Point{X: c.Lon, Y: c.Lat},
		Actual:    geom.Point{X: d.Lons[i], Y: d.Lats[j]},
		Offset:    unit.New(offset, unit.Meter),
	}
	log.Printf("ls2d: using nearest lat/lon = %.2f/%.2f (requested = %.2f/%.2f), distance = %.1f km",
		d.Lats[j], d.Lons[i], c.Lat, c.Lon, offset/1000)

	if err := d.readModelAnalysis(ma, t0, t1); err != nil {
		return nil, err
	}
	if err := d.readForecast(fc, f0, f1); err != nil {
		return nil, err
	}
	if err := d.readSurface(streams.Surface, s0, s1); err != nil {
		return nil, err
	}
	if err := d.readPressure(streams.Pressure, p0, p1); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dataset) readModelAnalysis(s *Stream, t0, t1 int) error {
	var err error
	read := func(name string) *sparse.DenseArray {
		var a *sparse.DenseArray
		if err == nil {
			a, err = field4(s, name, t0, t1)
		}
		return a
	}
	d.U = read("u")
	d.V = read("v")
	d.W = read("w")
	d.T = read("t")
	d.Q = read("q")
	d.Qc = read("clwc")
	d.Qi = read("ciwc")
	d.Qr = read("crwc")
	d.Qs = read("cswc")
	lnps := read("lnsp") // single-level field stored with a level axis
	if err != nil {
		return fmt.Errorf("ls2d: model-level analysis stream: %v", err)
	}
	d.nfull = d.U.Shape[1]

	if d.U.Shape[2] != d.nlat || d.U.Shape[3] != d.nlon {
		return fmt.Errorf("ls2d: model-level analysis grid is %dx%d, coordinates are %dx%d",
			d.U.Shape[2], d.U.Shape[3], d.nlat, d.nlon)
	}

	// lnsp carries a degenerate level axis; the surface pressure is
	// its only level, un-logarithmized.
	d.Ps = sparse.ZerosDense(d.nt, d.nlat, d.nlon)
	for i, v := range levelSlice(lnps, 0).Elements {
		d.Ps.Elements[i] = math.Exp(v)
	}

	d.Ql = d.Qc.Copy()
	d.Ql.AddDense(d.Qi)
	d.Ql.AddDense(d.Qr)
	d.Ql.AddDense(d.Qs)
	d.Qt = d.Q.Copy()
	d.Qt.AddDense(d.Ql)
	return nil
}

func (d *Dataset) readForecast(s *Stream, t0, t1 int) error {
	var err error
	read := func(name string) *sparse.DenseArray {
		var a *sparse.DenseArray
		if err == nil {
			a, err = field4(s, name, t0, t1)
		}
		return a
	}
	d.DTSW = read("mttswr")
	d.DTLW = read("mttlwr")
	d.DTSWClear = read("mttswrcs")
	d.DTLWClear = read("mttlwrcs")
	if err != nil {
		return fmt.Errorf("ls2d: model-level forecast stream: %v", err)
	}
	if d.DTSW.Shape[1] != d.nfull {
		return fmt.Errorf("ls2d: forecast stream has %d levels, analysis has %d",
			d.DTSW.Shape[1], d.nfull)
	}
	if d.DTSW.Shape[2] != d.nlat || d.DTSW.Shape[3] != d.nlon {
		return fmt.Errorf("ls2d: model-level forecast grid is %dx%d, coordinates are %dx%d",
			d.DTSW.Shape[2], d.DTSW.Shape[3], d.nlat, d.nlon)
	}
	return nil
}

func (d *Dataset) readSurface(s *Stream, t0, t1 int) error {
	var err error
	read := func(name string) *sparse.DenseArray {
		var a *sparse.DenseArray
		if err == nil {
			a, err = field3(s, name, t0, t1)
		}
		return a
	}
	d.Ts = read("skt")
	ishf := read("ishf")
	ie := read("ie")
	d.CloudCover = read("tcc")
	d.Z0M = read("fsr")
	flsr := read("flsr")
	if err != nil {
		return fmt.Errorf("ls2d: surface analysis stream: %v", err)
	}
	if d.Ts.Shape[1] != d.nlat || d.Ts.Shape[2] != d.nlon {
		return fmt.Errorf("ls2d: surface analysis grid is %dx%d, coordinates are %dx%d",
			d.Ts.Shape[1], d.Ts.Shape[2], d.nlat, d.nlon)
	}

	// The archive stores downward-positive fluxes and the logarithm of
	// the heat roughness length.
	d.SensibleHF = ishf.ScaleCopy(-1)
	d.MoistureFlux = ie.ScaleCopy(-1)
	d.Z0H = sparse.ZerosDense(flsr.Shape...)
	for i, v := range flsr.Elements {
		d.Z0H.Elements[i] = math.Exp(v)
	}
	return nil
}

func (d *Dataset) readPressure(s *Stream, t0, t1 int) error {
	z, err := field4(s, "z", t0, t1)
	if err != nil {
		return fmt.Errorf("ls2d: pressure-level analysis stream: %v", err)
	}
	if z.Shape[2] != d.nlat || z.Shape[3] != d.nlon {
		return fmt.Errorf("ls2d: pressure-level analysis grid is %dx%d, coordinates are %dx%d",
			z.Shape[2], z.Shape[3], d.nlat, d.nlon)
	}
	// Geopotential to geopotential height.
	d.ZPres = z.ScaleCopy(1 / grav)
	if s.Levels == nil {
		return fmt.Errorf("ls2d: pressure-level analysis stream has no level coordinate")
	}
	// hPa, top first at the source.
	d.PPres = flip1(s.Levels)
	for i := range d.PPres {
		d.PPres[i] *= 100
	}
	return nil
}

// windowIndices resolves the requested window to an inclusive index
// range by nearest-index matching against the stream time coordinate.
// A window reaching outside the available span is an error.
func windowIndices(times []float64, startH, endH float64) (int, int, error) {
	if len(times) == 0 {
		return 0, 0, fmt.Errorf("empty time coordinate")
	}
	if startH < times[0] || endH > times[len(times)-1] {
		return 0, 0, fmt.Errorf("requested window [%v, %v] is outside the available span [%v, %v] (hours since 1900-01-01)",
			startH, endH, times[0], times[len(times)-1])
	}
	return nearestIndex(times, startH), nearestIndex(times, endH), nil
}

// sameGrid verifies that two streams share the same latitude/longitude
// grid.
func sameGrid(a, b *Stream, aname, bname string) error {
	if !floats.Equal(a.Lats, b.Lats) || !floats.Equal(a.Lons, b.Lons) {
		return fmt.Errorf("ls2d: %s and %s streams are on different latitude/longitude grids",
			aname, bname)
	}
	return nil
}

// sameTimes verifies that two resolved time series are identical.
func sameTimes(a, b []float64, aname, bname string) error {
	if len(a) != len(b) {
		return fmt.Errorf("ls2d: %s and %s times are not synced: %d vs %d steps",
			aname, bname, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("ls2d: %s and %s times are not synced at step %d: %v vs %v",
				aname, bname, i, a[i], b[i])
		}
	}
	return nil
}

// nearestIndex returns the index of the value in xs closest to v,
// preferring the lower index on ties.
func nearestIndex(xs []float64, v float64) int {
	best := 0
	bestDiff := math.Abs(xs[0] - v)
	for i, x := range xs {
		if diff := math.Abs(x - v); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

// field4 extracts a (time, level, lat, lon) variable from s clipped to
// the inclusive time index range [t0, t1], with the level and latitude
// axes reversed so index 0 is the surface-most level and latitude
// ascends.
func field4(s *Stream, name string, t0, t1 int) (*sparse.DenseArray, error) {
	a, ok := s.Vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not in stream", name)
	}
	if len(a.Shape) != 4 {
		return nil, fmt.Errorf("variable %q has %d dimensions, want 4", name, len(a.Shape))
	}
	nt := t1 - t0 + 1
	nlev, nlat, nlon := a.Shape[1], a.Shape[2], a.Shape[3]
	out := sparse.ZerosDense(nt, nlev, nlat, nlon)
	for t := 0; t < nt; t++ {
		for k := 0; k < nlev; k++ {
			for j := 0; j < nlat; j++ {
				for i := 0; i < nlon; i++ {
					out.Set(a.Get(t0+t, nlev-1-k, nlat-1-j, i), t, k, j, i)
				}
			}
		}
	}
	return out, nil
}

// field3 extracts a (time, lat, lon) variable from s clipped to the
// inclusive time index range [t0, t1], with the latitude axis reversed
// so latitude ascends.
func field3(s *Stream, name string, t0, t1 int) (*sparse.DenseArray, error) {
	a, ok := s.Vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not in stream", name)
	}
	if len(a.Shape) != 3 {
		return nil, fmt.Errorf("variable %q has %d dimensions, want 3", name, len(a.Shape))
	}
	nt := t1 - t0 + 1
	nlat, nlon := a.Shape[1], a.Shape[2]
	out := sparse.ZerosDense(nt, nlat, nlon)
	for t := 0; t < nt; t++ {
		for j := 0; j < nlat; j++ {
			for i := 0; i < nlon; i++ {
				out.Set(a.Get(t0+t, nlat-1-j, i), t, j, i)
			}
		}
	}
	return out, nil
}

// flip1 returns a reversed copy of x.
func flip1(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[len(x)-1-i] = v
	}
	return out
}

// levelSlice returns a copy of the 3-D horizontal slice of the
// (time, level, lat, lon) array a at level k.
func levelSlice(a *sparse.DenseArray, k int) *sparse.DenseArray {
	nt, nlat, nlon := a.Shape[0], a.Shape[2], a.Shape[3]
	out := sparse.ZerosDense(nt, nlat, nlon)
	for t := 0; t < nt; t++ {
		for j := 0; j < nlat; j++ {
			for i := 0; i < nlon; i++ {
				out.Set(a.Get(t, k, j, i), t, j, i)
			}
		}
	}
	return out
}
