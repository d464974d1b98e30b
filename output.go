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
)

// outputVariable describes one variable of the output file.
type outputVariable struct {
	name        string
	dims        []string
	description string
	units       string
	data        *sparse.DenseArray
}

// variables lists the output variables in file order.
func (fs *ForcingSet) variables() []outputVariable {
	profile := []string{"time", "level"}
	surface := []string{"time"}
	return []outputVariable{
		{"z", profile, "Full level height", "m", fs.Z},
		{"p", profile, "Full level pressure", "Pa", fs.P},
		{"thl", profile, "Liquid water potential temperature", "K", fs.ThetaL},
		{"qt", profile, "Total specific humidity", "kg kg-1", fs.Qt},
		{"u", profile, "Zonal wind", "m s-1", fs.U},
		{"v", profile, "Meridional wind", "m s-1", fs.V},
		{"wspd", profile, "Horizontal wind speed", "m s-1", fs.WindSpeed},
		{"wls", profile, "Large-scale vertical velocity", "m s-1", fs.WHeight},
		{"rho", profile, "Density", "kg m-3", fs.Rho},
		{"ug", profile, "Geostrophic zonal wind", "m s-1", fs.Ug},
		{"vg", profile, "Geostrophic meridional wind", "m s-1", fs.Vg},
		{"dtthl_advec", profile, "Advective liquid water potential temperature tendency", "K s-1", fs.DThlDtAdv},
		{"dtqt_advec", profile, "Advective total specific humidity tendency", "kg kg-1 s-1", fs.DQtDtAdv},
		{"dtu_advec", profile, "Advective zonal wind tendency", "m s-2", fs.DUDtAdv},
		{"dtv_advec", profile, "Advective meridional wind tendency", "m s-2", fs.DVDtAdv},
		{"dtu_coriolis", profile, "Coriolis zonal wind tendency", "m s-2", fs.DUDtCor},
		{"dtv_coriolis", profile, "Coriolis meridional wind tendency", "m s-2", fs.DVDtCor},
		{"dtu_total", profile, "Total zonal wind tendency", "m s-2", fs.DUDtTotal},
		{"dtv_total", profile, "Total meridional wind tendency", "m s-2", fs.DVDtTotal},
		{"dtthl_sw", profile, "Shortwave radiative liquid water potential temperature tendency", "K s-1", fs.DThlSW},
		{"dtthl_lw", profile, "Longwave radiative liquid water potential temperature tendency", "K s-1", fs.DThlLW},
		{"dtthl_sw_cs", profile, "Clear-sky shortwave radiative liquid water potential temperature tendency", "K s-1", fs.DThlSWClear},
		{"dtthl_lw_cs", profile, "Clear-sky longwave radiative liquid water potential temperature tendency", "K s-1", fs.DThlLWClear},
		{"ps", surface, "Surface pressure", "Pa", fs.Ps},
		{"wth", surface, "Surface kinematic heat flux", "K m s-1", fs.WTh},
		{"wq", surface, "Surface kinematic moisture flux", "kg kg-1 m s-1", fs.WQ},
		{"cc", surface, "Total cloud cover", "-", fs.CloudCover},
		{"z0m", surface, "Roughness length for momentum", "m", fs.Z0M},
		{"z0h", surface, "Roughness length for heat", "m", fs.Z0H},
	}
}

// Write writes fs to NetCDF file w. Time is stored in double
// precision; everything else in single precision.
func (fs *ForcingSet) Write(w *os.File) error {
	nt := len(fs.Time)
	nfull := fs.P.Shape[1]
	h := cdf.NewHeader([]string{"time", "level"}, []int{nt, nfull})
	h.AddAttribute("", "comment", "LS2D large-scale forcings derived from ERA5")
	h.AddAttribute("", "central_lat", []float64{fs.Point.Actual.Y})
	h.AddAttribute("", "central_lon", []float64{fs.Point.Actual.X})
	h.AddAttribute("", "fc", []float64{fs.F})
	h.AddAttribute("", "n_averaging", []int32{int32(fs.Config.NAv)})
	h.AddAttribute("", "scheme", fs.Config.Scheme)

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "hours since 1900-01-01 00:00:00.0")
	h.AddVariable("time_sec", []string{"time"}, []float64{0})
	h.AddAttribute("time_sec", "units", "seconds since the start of the time window")

	vars := fs.variables()
	for _, v := range vars {
		h.AddVariable(v.name, v.dims, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	if err := writeNCFDouble(f, "time", fs.Time); err != nil {
		return fmt.Errorf("ls2d: writing variable time to netcdf file: %v", err)
	}
	if err := writeNCFDouble(f, "time_sec", fs.TimeSec); err != nil {
		return fmt.Errorf("ls2d: writing variable time_sec to netcdf file: %v", err)
	}
	for _, v := range vars {
		if err := writeNCF(f, v.name, v.data); err != nil {
			return fmt.Errorf("ls2d: writing variable %s to netcdf file: %v", v.name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}

	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	_, err := w.Write(data32)
	return err
}

func writeNCFDouble(f *cdf.File, Var string, data []float64) error {
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	_, err := w.Write(data)
	return err
}
