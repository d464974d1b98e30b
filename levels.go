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
	"math"
	"runtime"

	"github.com/ctessum/sparse"
)

// A HybridGrid is a hybrid sigma-pressure vertical discretization:
// each half-level pressure is the affine function A[k] + B[k]*ps of
// the surface pressure. Coefficients are ordered surface first, so
// A[0]+B[0]*ps is the surface itself (A[0] = 0, B[0] = 1 for ERA5).
type HybridGrid struct {
	a, b []float64
}

// NewHybridGrid validates a half-level coefficient table. The table
// must contain at least two half levels and equally many A and B
// entries.
func NewHybridGrid(a, b []float64) (*HybridGrid, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("ls2d: hybrid coefficient table has %d A but %d B entries", len(a), len(b))
	}
	if len(a) < 2 {
		return nil, fmt.Errorf("ls2d: hybrid coefficient table has %d half levels, need at least 2", len(a))
	}
	return &HybridGrid{
		a: append([]float64{}, a...),
		b: append([]float64{}, b...),
	}, nil
}

// NFull returns the number of full levels described by the table.
func (hg *HybridGrid) NFull() int { return len(hg.a) - 1 }

// halfPressure fills out (length NFull()+1) with the half-level
// pressures for surface pressure ps.
func (hg *HybridGrid) halfPressure(ps float64, out []float64) {
	for k := range hg.a {
		out[k] = hg.a[k] + hg.b[k]*ps
	}
}

// IntegrateLevels computes half- and full-level pressure and
// geopotential height for every time step and grid cell from the
// surface pressure and the virtual-temperature profile, using the
// given vertical discretization. Columns are independent, so the
// per-column hydrostatic recurrence is run in parallel over the flat
// (time, lat, lon) index space.
//
// Degenerate columns (non-positive or non-decreasing half-level
// pressure, non-positive virtual temperature) abort the integration
// with an error rather than propagating NaNs.
func (d *Dataset) IntegrateLevels(hg *HybridGrid) error {
	if hg == nil {
		return fmt.Errorf("ls2d: nil hybrid coefficient table")
	}
	if hg.NFull() != d.nfull {
		return fmt.Errorf("ls2d: hybrid coefficient table has %d full levels, dataset has %d",
			hg.NFull(), d.nfull)
	}

	tv := VirtualTemperature(d.T, d.Q, d.Qc, d.Qi, d.Qr, d.Qs)
	nhalf := d.nfull + 1
	ph := sparse.ZerosDense(d.nt, nhalf, d.nlat, d.nlon)
	zh := sparse.ZerosDense(d.nt, nhalf, d.nlat, d.nlon)

	ncols := d.nt * d.nlat * d.nlon
	nprocs := runtime.GOMAXPROCS(0)
	errChan := make(chan error, nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			buf := make([]float64, nhalf)
			for c := pp; c < ncols; c += nprocs {
				t := c / (d.nlat * d.nlon)
				j := c % (d.nlat * d.nlon) / d.nlon
				i := c % d.nlon
				if err := integrateColumn(hg, tv, d.Ps.Get(t, j, i), ph, zh, buf, t, j, i); err != nil {
					errChan <- err
					return
				}
			}
			errChan <- nil
		}(pp)
	}
	var firstErr error
	for pp := 0; pp < nprocs; pp++ {
		if err := <-errChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}

	d.Tv = tv
	d.PHalf, d.ZHalf = ph, zh
	d.P = fullFromHalf(ph)
	d.Z = fullFromHalf(zh)
	return nil
}

// integrateColumn evaluates the hydrostatic recurrence for the column
// at (t, j, i): half-level pressures from the coefficient table, then
// half-level heights integrated upward from the surface. The
// recurrence is inherently sequential in the level index since each
// half level depends on the one below.
func integrateColumn(hg *HybridGrid, tv *sparse.DenseArray, ps float64, ph, zh *sparse.DenseArray, buf []float64, t, j, i int) error {
	hg.halfPressure(ps, buf)
	for k, p := range buf {
		if p <= 0 {
			return fmt.Errorf("ls2d: non-positive half-level pressure %g Pa at (t=%d, k=%d, j=%d, i=%d)", p, t, k, j, i)
		}
		if k > 0 && p >= buf[k-1] {
			return fmt.Errorf("ls2d: half-level pressure not decreasing with height at (t=%d, k=%d, j=%d, i=%d)", t, k, j, i)
		}
		ph.Set(p, t, k, j, i)
	}

	z := 0.0
	zh.Set(z, t, 0, j, i)
	for k := 0; k < len(buf)-1; k++ {
		tvk := tv.Get(t, k, j, i)
		if tvk <= 0 {
			return fmt.Errorf("ls2d: non-positive virtual temperature %g K at (t=%d, k=%d, j=%d, i=%d)", tvk, t, k, j, i)
		}
		z += rd * tvk * math.Log(buf[k]/buf[k+1]) / grav
		zh.Set(z, t, k+1, j, i)
	}
	return nil
}

// fullFromHalf returns the full-level counterpart of a half-level
// array: the arithmetic mean of the two bounding half levels. This is
// a deliberate linear approximation, not a log-pressure-weighted mean.
func fullFromHalf(h *sparse.DenseArray) *sparse.DenseArray {
	nt, nhalf, nlat, nlon := h.Shape[0], h.Shape[1], h.Shape[2], h.Shape[3]
	out := sparse.ZerosDense(nt, nhalf-1, nlat, nlon)
	for t := 0; t < nt; t++ {
		for k := 0; k < nhalf-1; k++ {
			for j := 0; j < nlat; j++ {
				for i := 0; i < nlon; i++ {
					out.Set(0.5*(h.Get(t, k, j, i)+h.Get(t, k+1, j, i)), t, k, j, i)
				}
			}
		}
	}
	return out
}
