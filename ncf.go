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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
)

// LoadStreams reads the four raw data streams from NetCDF files. Each
// stream may be split over several files along the time axis; files
// must be given in chronological order and share the same grid. All
// variables are unpacked (scale_factor/add_offset applied) and held
// in memory as float64.
func LoadStreams(surface, model, pressure, forecast []string) (*RawStreams, error) {
	var raw RawStreams
	var err error
	if raw.Surface, err = readStream(surface); err != nil {
		return nil, fmt.Errorf("ls2d: surface stream: %v", err)
	}
	if raw.Model, err = readStream(model); err != nil {
		return nil, fmt.Errorf("ls2d: model level stream: %v", err)
	}
	if raw.Pressure, err = readStream(pressure); err != nil {
		return nil, fmt.Errorf("ls2d: pressure level stream: %v", err)
	}
	if raw.Forecast, err = readStream(forecast); err != nil {
		return nil, fmt.Errorf("ls2d: forecast stream: %v", err)
	}
	return &raw, nil
}

// readStream reads and time-merges one stream.
func readStream(paths []string) (*Stream, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files given")
	}
	var merged *Stream
	for _, path := range paths {
		s, err := readStreamFile(path)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = s
			continue
		}
		if err := merged.appendTime(s); err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}
	}
	for i := 1; i < len(merged.Time); i++ {
		if merged.Time[i] <= merged.Time[i-1] {
			return nil, fmt.Errorf("merged time axis not strictly increasing at record %d; files must be given in chronological order", i)
		}
	}
	return merged, nil
}

// coordNames are the coordinate variables of an archive file; every
// other variable is data.
var coordNames = map[string]bool{
	"time":      true,
	"level":     true,
	"latitude":  true,
	"longitude": true,
}

// readStreamFile reads one NetCDF file completely.
func readStreamFile(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	numrecs := int(ff.Header.NumRecs(fi.Size()))

	s := &Stream{Vars: make(map[string]*sparse.DenseArray)}
	if s.Time, err = readCoord(ff, numrecs, "time"); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if s.Lats, err = readCoord(ff, numrecs, "latitude"); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if s.Lons, err = readCoord(ff, numrecs, "longitude"); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if hasVariable(ff, "level") {
		if s.Levels, err = readCoord(ff, numrecs, "level"); err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}
	}
	for _, name := range ff.Header.Variables() {
		if coordNames[name] {
			continue
		}
		a, err := readVariable(ff, numrecs, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}
		s.Vars[name] = a
	}
	return s, nil
}

// appendTime concatenates s2 onto s along the time axis. The two
// pieces must share the exact same grid and variable set.
func (s *Stream) appendTime(s2 *Stream) error {
	if !floats.Equal(s.Lats, s2.Lats) || !floats.Equal(s.Lons, s2.Lons) {
		return fmt.Errorf("latitude/longitude grid differs from the preceding files")
	}
	if !floats.Equal(s.Levels, s2.Levels) {
		return fmt.Errorf("level coordinate differs from the preceding files")
	}
	if len(s.Vars) != len(s2.Vars) {
		return fmt.Errorf("variable set differs from the preceding files")
	}
	for name, a := range s.Vars {
		a2, ok := s2.Vars[name]
		if !ok {
			return fmt.Errorf("variable %q missing", name)
		}
		if len(a.Shape) != len(a2.Shape) {
			return fmt.Errorf("variable %q changes rank between files", name)
		}
		shape := append([]int{}, a.Shape...)
		shape[0] += a2.Shape[0]
		cat := sparse.ZerosDense(shape...)
		copy(cat.Elements, a.Elements)
		copy(cat.Elements[len(a.Elements):], a2.Elements)
		s.Vars[name] = cat
	}
	s.Time = append(s.Time, s2.Time...)
	return nil
}

func hasVariable(ff *cdf.File, name string) bool {
	return len(ff.Header.Lengths(name)) != 0
}

// readCoord reads a one-dimensional coordinate variable.
func readCoord(ff *cdf.File, numrecs int, name string) ([]float64, error) {
	a, err := readVariable(ff, numrecs, name)
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 1 {
		return nil, fmt.Errorf("coordinate %q has %d dimensions, want 1", name, len(a.Shape))
	}
	return a.Elements, nil
}

// readVariable reads a whole variable, unpacking short-integer
// storage with the scale_factor and add_offset attributes where
// present.
func readVariable(ff *cdf.File, numrecs int, name string) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %q not in file", name)
	}
	if dims[0] == 0 { // record variable
		dims = append([]int{numrecs}, dims[1:]...)
	}
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	begin, end := make([]int, len(dims)), make([]int, len(dims))
	end[0] = dims[0]
	r := ff.Reader(name, begin, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %q: %v", name, err)
	}

	data := sparse.ZerosDense(dims...)
	switch vals := buf.(type) {
	case []float64:
		copy(data.Elements, vals)
	case []float32:
		for i, v := range vals {
			data.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range vals {
			data.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range vals {
			data.Elements[i] = float64(v)
		}
	case []uint8:
		for i, v := range vals {
			data.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("variable %q has unsupported storage type %T", name, buf)
	}

	scale, hasScale := attrFloat(ff, name, "scale_factor")
	offset, hasOffset := attrFloat(ff, name, "add_offset")
	if hasScale || hasOffset {
		if !hasScale {
			scale = 1
		}
		for i, v := range data.Elements {
			data.Elements[i] = v*scale + offset
		}
	}
	return data, nil
}

// attrFloat returns the first element of a numeric variable attribute.
func attrFloat(ff *cdf.File, v, a string) (float64, bool) {
	switch val := ff.Header.GetAttribute(v, a).(type) {
	case []float64:
		if len(val) > 0 {
			return val[0], true
		}
	case []float32:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	case []int32:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	case []int16:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	}
	return 0, false
}

// ReadHybridGrid reads the hybrid sigma-pressure half-level
// coefficient table from the hyai and hybi variables of a NetCDF
// file. The file stores the table top first; the returned grid is
// reordered surface first.
func ReadHybridGrid(path string) (*HybridGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("ls2d: %s: %v", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	numrecs := int(ff.Header.NumRecs(fi.Size()))
	a, err := readCoord(ff, numrecs, "hyai")
	if err != nil {
		return nil, fmt.Errorf("ls2d: %s: %v", path, err)
	}
	b, err := readCoord(ff, numrecs, "hybi")
	if err != nil {
		return nil, fmt.Errorf("ls2d: %s: %v", path, err)
	}
	return NewHybridGrid(flip1(a), flip1(b))
}
