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

	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
)

// ForcingConfig selects one forcing computation: the averaging
// half-width and the horizontal discretization scheme.
type ForcingConfig struct {
	// NAv is the averaging half-width in grid cells. The box-mean is
	// taken over a square of (2*NAv+1)² cells centered on the resolved
	// grid point; 0 reduces it to the single central cell.
	NAv int
	// Scheme is the discretization scheme identifier: "box", "2nd" or
	// "4th".
	Scheme string
}

// A ForcingSet holds the forcing time series for one configuration:
// box-mean state profiles, geostrophic wind on model levels, and
// advective, Coriolis and total tendencies. Profile arrays have
// dimensions (time, level); surface series have dimension (time).
type ForcingSet struct {
	Config ForcingConfig
	Point  GridPoint

	Time    []float64
	TimeSec []float64

	// Box-mean state profiles.
	Z         *sparse.DenseArray // full-level height [m]
	P         *sparse.DenseArray // full-level pressure [Pa]
	ThetaL    *sparse.DenseArray // liquid-water potential temperature [K]
	Qt        *sparse.DenseArray // total specific humidity [kg kg-1]
	U         *sparse.DenseArray // u-component wind [m s-1]
	V         *sparse.DenseArray // v-component wind [m s-1]
	WindSpeed *sparse.DenseArray // horizontal wind speed [m s-1]
	WHeight   *sparse.DenseArray // vertical velocity, positive up [m s-1]
	Rho       *sparse.DenseArray // density [kg m-3]

	// Box-mean radiative θl tendencies [K s-1].
	DThlSW, DThlLW, DThlSWClear, DThlLWClear *sparse.DenseArray

	// Box-mean surface series.
	Ps         *sparse.DenseArray // surface pressure [Pa]
	WTh        *sparse.DenseArray // kinematic heat flux [K m s-1]
	WQ         *sparse.DenseArray // kinematic moisture flux [kg kg-1 m s-1]
	CloudCover *sparse.DenseArray // total cloud cover [-]
	Z0M        *sparse.DenseArray // momentum roughness length [m]
	Z0H        *sparse.DenseArray // heat roughness length [m]

	// Geostrophic wind on model levels [m s-1].
	Ug, Vg *sparse.DenseArray

	// Advective tendencies.
	DThlDtAdv *sparse.DenseArray // [K s-1]
	DQtDtAdv  *sparse.DenseArray // [kg kg-1 s-1]
	DUDtAdv   *sparse.DenseArray // [m s-2]
	DVDtAdv   *sparse.DenseArray // [m s-2]

	// Coriolis and total momentum tendencies [m s-2].
	DUDtCor, DVDtCor     *sparse.DenseArray
	DUDtTotal, DVDtTotal *sparse.DenseArray

	// F is the Coriolis parameter used [s-1].
	F float64
}

// Forcings computes box-mean profiles and forcing tendencies for one
// configuration. The dataset must have been through IntegrateLevels
// and DeriveFields. The averaging box plus the scheme's halo must lie
// inside the loaded domain; anything else is an error rather than an
// out-of-domain read. The dataset itself is never modified, so
// Forcings may be called repeatedly with different configurations.
func (d *Dataset) Forcings(c ForcingConfig) (*ForcingSet, error) {
	if d.P == nil {
		return nil, fmt.Errorf("ls2d: Forcings requires IntegrateLevels to have run")
	}
	if d.ThetaL == nil {
		return nil, fmt.Errorf("ls2d: Forcings requires DeriveFields to have run")
	}
	if c.NAv < 0 {
		return nil, fmt.Errorf("ls2d: averaging half-width %d is negative", c.NAv)
	}
	sch, err := SchemeByName(c.Scheme)
	if err != nil {
		return nil, err
	}
	if len(d.PPres) < 2 {
		return nil, fmt.Errorf("ls2d: geostrophic wind interpolation needs at least 2 pressure levels, have %d", len(d.PPres))
	}

	jC, iC := d.Point.J, d.Point.I
	jr := indexRange{jC - c.NAv, jC + c.NAv + 1}
	ir := indexRange{iC - c.NAv, iC + c.NAv + 1}
	h := sch.halo(c.NAv)
	if !jr.expand(h).within(d.nlat) || !ir.expand(h).within(d.nlon) {
		return nil, fmt.Errorf("ls2d: averaging box of half-width %d plus the %d-cell halo of scheme %s reaches outside the %dx%d domain around cell (j=%d, i=%d)",
			c.NAv, h, sch, d.nlat, d.nlon, jC, iC)
	}
	geo := newStencilGeom(d.Lats, d.Lons, iC, jC, c.NAv)

	f := &ForcingSet{
		Config:  c,
		Point:   d.Point,
		Time:    append([]float64{}, d.Time...),
		TimeSec: append([]float64{}, d.TimeSec...),
		F:       d.F,
	}

	// Box-mean state.
	f.Z = d.profileMean(d.Z, jr, ir)
	f.P = d.profileMean(d.P, jr, ir)
	f.ThetaL = d.profileMean(d.ThetaL, jr, ir)
	f.Qt = d.profileMean(d.Qt, jr, ir)
	f.U = d.profileMean(d.U, jr, ir)
	f.V = d.profileMean(d.V, jr, ir)
	f.WindSpeed = d.profileMean(d.WindSpeed, jr, ir)
	f.WHeight = d.profileMean(d.WHeight, jr, ir)
	f.Rho = d.profileMean(d.Rho, jr, ir)
	f.DThlSW = d.profileMean(d.DThlSW, jr, ir)
	f.DThlLW = d.profileMean(d.DThlLW, jr, ir)
	f.DThlSWClear = d.profileMean(d.DThlSWClear, jr, ir)
	f.DThlLWClear = d.profileMean(d.DThlLWClear, jr, ir)

	f.Ps = d.surfaceMean(d.Ps, jr, ir)
	f.WTh = d.surfaceMean(d.WTh, jr, ir)
	f.WQ = d.surfaceMean(d.WQ, jr, ir)
	f.CloudCover = d.surfaceMean(d.CloudCover, jr, ir)
	f.Z0M = d.surfaceMean(d.Z0M, jr, ir)
	f.Z0H = d.surfaceMean(d.Z0H, jr, ir)

	// Advective tendencies: -u ∂S/∂x - v ∂S/∂y, evaluated pointwise
	// and box-averaged.
	f.DThlDtAdv = d.advection(d.ThetaL, sch, geo, jr, ir)
	f.DQtDtAdv = d.advection(d.Qt, sch, geo, jr, ir)
	f.DUDtAdv = d.advection(d.U, sch, geo, jr, ir)
	f.DVDtAdv = d.advection(d.V, sch, geo, jr, ir)

	// Geostrophic wind from the geopotential height gradient at
	// constant pressure, then interpolated onto the box-mean model
	// level pressures per time step.
	ugp, vgp := d.geostrophicPressure(sch, geo, jr, ir)
	f.Ug, f.Vg = d.geostrophicModelLevels(ugp, vgp, f.P)

	// Coriolis and total momentum tendencies.
	f.DUDtCor = sparse.ZerosDense(d.nt, d.nfull)
	f.DVDtCor = sparse.ZerosDense(d.nt, d.nfull)
	f.DUDtTotal = sparse.ZerosDense(d.nt, d.nfull)
	f.DVDtTotal = sparse.ZerosDense(d.nt, d.nfull)
	for i := range f.DUDtCor.Elements {
		f.DUDtCor.Elements[i] = d.F * (f.V.Elements[i] - f.Vg.Elements[i])
		f.DVDtCor.Elements[i] = -d.F * (f.U.Elements[i] - f.Ug.Elements[i])
		f.DUDtTotal.Elements[i] = f.DUDtAdv.Elements[i] + f.DUDtCor.Elements[i]
		f.DVDtTotal.Elements[i] = f.DVDtAdv.Elements[i] + f.DVDtCor.Elements[i]
	}
	return f, nil
}

// boxMean returns the mean of the (time, level, lat, lon) field f over
// the given latitude/longitude index box at time t and level k.
func boxMean(f *sparse.DenseArray, t, k int, jr, ir indexRange) float64 {
	sum := 0.0
	for j := jr.start; j < jr.end; j++ {
		row := f.Elements[f.Index1d(t, k, j, ir.start) : f.Index1d(t, k, j, ir.end-1)+1]
		sum += floats.Sum(row)
	}
	return sum / float64(jr.len()*ir.len())
}

// boxMean3 is boxMean for (time, lat, lon) fields.
func boxMean3(f *sparse.DenseArray, t int, jr, ir indexRange) float64 {
	sum := 0.0
	for j := jr.start; j < jr.end; j++ {
		row := f.Elements[f.Index1d(t, j, ir.start) : f.Index1d(t, j, ir.end-1)+1]
		sum += floats.Sum(row)
	}
	return sum / float64(jr.len()*ir.len())
}

// profileMean reduces a (time, level, lat, lon) field to its
// (time, level) box mean.
func (d *Dataset) profileMean(f *sparse.DenseArray, jr, ir indexRange) *sparse.DenseArray {
	nlev := f.Shape[1]
	out := sparse.ZerosDense(d.nt, nlev)
	for t := 0; t < d.nt; t++ {
		for k := 0; k < nlev; k++ {
			out.Set(boxMean(f, t, k, jr, ir), t, k)
		}
	}
	return out
}

// surfaceMean reduces a (time, lat, lon) field to its (time) box mean.
func (d *Dataset) surfaceMean(f *sparse.DenseArray, jr, ir indexRange) *sparse.DenseArray {
	out := sparse.ZerosDense(d.nt)
	for t := 0; t < d.nt; t++ {
		out.Set(boxMean3(f, t, jr, ir), t)
	}
	return out
}

// advection returns the box-averaged advective tendency
// -u ∂s/∂x - v ∂s/∂y of the scalar field s.
func (d *Dataset) advection(s *sparse.DenseArray, sch Scheme, geo *stencilGeom, jr, ir indexRange) *sparse.DenseArray {
	out := sparse.ZerosDense(d.nt, d.nfull)
	n := float64(jr.len() * ir.len())
	for t := 0; t < d.nt; t++ {
		for k := 0; k < d.nfull; k++ {
			sum := 0.0
			for j := jr.start; j < jr.end; j++ {
				for i := ir.start; i < ir.end; i++ {
					sum -= d.U.Get(t, k, j, i)*sch.gradX(s, geo, t, k, j, i) +
						d.V.Get(t, k, j, i)*sch.gradY(s, geo, t, k, j, i)
				}
			}
			out.Set(sum/n, t, k)
		}
	}
	return out
}

// geostrophicPressure diagnoses the geostrophic wind on each pressure
// level from the box-averaged horizontal gradient of geopotential
// height at constant pressure:
//
//	vg = +g/f ∂z/∂x, ug = -g/f ∂z/∂y
func (d *Dataset) geostrophicPressure(sch Scheme, geo *stencilGeom, jr, ir indexRange) (ugp, vgp *sparse.DenseArray) {
	npres := len(d.PPres)
	ugp = sparse.ZerosDense(d.nt, npres)
	vgp = sparse.ZerosDense(d.nt, npres)
	n := float64(jr.len() * ir.len())
	for t := 0; t < d.nt; t++ {
		for k := 0; k < npres; k++ {
			var sumX, sumY float64
			for j := jr.start; j < jr.end; j++ {
				for i := ir.start; i < ir.end; i++ {
					sumX += sch.gradX(d.ZPres, geo, t, k, j, i)
					sumY += sch.gradY(d.ZPres, geo, t, k, j, i)
				}
			}
			vgp.Set(grav/d.F*sumX/n, t, k)
			ugp.Set(-grav/d.F*sumY/n, t, k)
		}
	}
	return ugp, vgp
}

// geostrophicModelLevels interpolates the pressure-level geostrophic
// wind onto the box-mean model-level pressures, independently per time
// step. Model levels whose pressure falls outside the pressure-level
// range (the lowest model level often does, when the surface pressure
// exceeds the bottom pressure level) are deliberately extrapolated.
func (d *Dataset) geostrophicModelLevels(ugp, vgp, pMean *sparse.DenseArray) (ug, vg *sparse.DenseArray) {
	npres := len(d.PPres)
	ug = sparse.ZerosDense(d.nt, d.nfull)
	vg = sparse.ZerosDense(d.nt, d.nfull)
	urow := make([]float64, npres)
	vrow := make([]float64, npres)
	for t := 0; t < d.nt; t++ {
		copy(urow, ugp.Elements[t*npres:(t+1)*npres])
		copy(vrow, vgp.Elements[t*npres:(t+1)*npres])
		for k := 0; k < d.nfull; k++ {
			p := pMean.Get(t, k)
			ug.Set(interpLin(d.PPres, urow, p), t, k)
			vg.Set(interpLin(d.PPres, vrow, p), t, k)
		}
	}
	return ug, vg
}

// interpLin linearly interpolates ys over the strictly decreasing
// coordinate xs, extrapolating with the end segments when x falls
// outside the covered range.
func interpLin(xs, ys []float64, x float64) float64 {
	s := len(xs) - 2
	for i := 0; i < len(xs)-1; i++ {
		if x >= xs[i+1] {
			s = i
			break
		}
	}
	slope := (ys[s+1] - ys[s]) / (xs[s+1] - xs[s])
	return ys[s] + slope*(x-xs[s])
}
