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

	"github.com/ctessum/sparse"
)

// ExnerFunction returns the Exner function (p/p0)^(Rd/cpd) for the
// given pressure field.
func ExnerFunction(p *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(p.Shape...)
	for i, v := range p.Elements {
		out.Elements[i] = math.Pow(v/p0, rd/cpd)
	}
	return out
}

// PotentialTemperature returns the potential temperature from absolute
// temperature and the Exner function.
func PotentialTemperature(t, exner *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(t.Shape...)
	for i, v := range t.Elements {
		out.Elements[i] = v / exner.Elements[i]
	}
	return out
}

// LiquidWaterPotentialTemperature returns θl: the potential
// temperature with the latent-heat signature of the condensed water ql
// removed.
func LiquidWaterPotentialTemperature(theta, exner, ql *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(theta.Shape...)
	for i, v := range theta.Elements {
		out.Elements[i] = v - lv/(cpd*exner.Elements[i])*ql.Elements[i]
	}
	return out
}

// VirtualTemperature returns the virtual temperature from absolute
// temperature, specific humidity, and any number of condensed-water
// species, combined additively:
//
//	Tv = T (1 + (Rv/Rd - 1) q - Σ qcond)
func VirtualTemperature(t, q *sparse.DenseArray, condensates ...*sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(t.Shape...)
	for i, v := range t.Elements {
		f := 1 + (rv/rd-1)*q.Elements[i]
		for _, qc := range condensates {
			f -= qc.Elements[i]
		}
		out.Elements[i] = v * f
	}
	return out
}

// Density returns the air density from pressure and virtual
// temperature via the ideal gas law.
func Density(p, tv *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(p.Shape...)
	for i, v := range p.Elements {
		out.Elements[i] = v / (rd * tv.Elements[i])
	}
	return out
}

// VerticalVelocity converts the pressure-coordinate vertical velocity
// ω [Pa s-1] to a height-coordinate velocity [m s-1], positive upward.
func VerticalVelocity(omega, rho *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(omega.Shape...)
	for i, v := range omega.Elements {
		out.Elements[i] = -v / (rho.Elements[i] * grav)
	}
	return out
}

// WindSpeed returns the absolute horizontal wind speed.
func WindSpeed(u, v *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(u.Shape...)
	for i, uv := range u.Elements {
		out.Elements[i] = math.Sqrt(uv*uv + v.Elements[i]*v.Elements[i])
	}
	return out
}

// KinematicHeatFlux converts a surface sensible heat flux [W m-2,
// positive upward] to a kinematic flux [K m s-1] using the surface
// density and Exner function.
func KinematicHeatFlux(hf, rhos, exners *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(hf.Shape...)
	for i, v := range hf.Elements {
		out.Elements[i] = v / (rhos.Elements[i] * cpd * exners.Elements[i])
	}
	return out
}

// KinematicMoistureFlux converts a surface moisture mass flux
// [kg m-2 s-1, positive upward] to a kinematic flux [kg kg-1 m s-1]
// using the surface density.
func KinematicMoistureFlux(mf, rhos *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(mf.Shape...)
	for i, v := range mf.Elements {
		out.Elements[i] = v / rhos.Elements[i]
	}
	return out
}

// CoriolisParameter returns 2Ω·sin(lat) for a latitude in degrees.
func CoriolisParameter(lat float64) float64 {
	return 2 * omega * math.Sin(lat*math.Pi/180)
}

// DeriveFields computes the thermodynamic and surface fields that
// follow from the vertically integrated pressure and height:
// potential temperatures, density, height-coordinate vertical
// velocity, wind speed, surface kinematic fluxes, the θl-converted
// radiative tendencies, and the Coriolis parameter. IntegrateLevels
// must have run first. All inputs are left unmodified.
func (d *Dataset) DeriveFields() error {
	if d.P == nil || d.PHalf == nil {
		return fmt.Errorf("ls2d: DeriveFields requires IntegrateLevels to have run")
	}

	d.Exner = ExnerFunction(d.P)
	d.Theta = PotentialTemperature(d.T, d.Exner)
	d.ThetaL = LiquidWaterPotentialTemperature(d.Theta, d.Exner, d.Ql)
	d.Rho = Density(d.P, d.Tv)
	d.WHeight = VerticalVelocity(d.W, d.Rho)
	d.WindSpeed = WindSpeed(d.U, d.V)

	// Surface state: the virtual temperature uses the skin temperature
	// with the lowest-model-level humidity as an estimate.
	d.TvSurf = VirtualTemperature(d.Ts, levelSlice(d.Q, 0))
	d.RhoSurf = Density(levelSlice(d.PHalf, 0), d.TvSurf)
	d.ExnerSurf = ExnerFunction(d.Ps)
	d.WTh = KinematicHeatFlux(d.SensibleHF, d.RhoSurf, d.ExnerSurf)
	d.WQ = KinematicMoistureFlux(d.MoistureFlux, d.RhoSurf)

	d.DThlSW = PotentialTemperature(d.DTSW, d.Exner)
	d.DThlLW = PotentialTemperature(d.DTLW, d.Exner)
	d.DThlSWClear = PotentialTemperature(d.DTSWClear, d.Exner)
	d.DThlLWClear = PotentialTemperature(d.DTLWClear, d.Exner)

	d.F = CoriolisParameter(d.Config.Lat)
	return nil
}
