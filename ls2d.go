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

// Package ls2d derives large-scale forcing time series (advective
// tendencies, geostrophic wind, mean vertical profiles) from gridded
// ERA5 reanalysis fields, for driving single-column and LES
// simulations at one geographic location.
//
// The pipeline runs in four stages: a Dataset is assembled from raw
// data streams (NewDataset), hydrostatic vertical integration builds
// the three-dimensional pressure and height fields (IntegrateLevels),
// thermodynamic quantities are derived from them (DeriveFields), and
// Forcings computes box-mean profiles and tendencies for one
// averaging/discretization configuration. Each stage produces new
// arrays and never modifies the output of an earlier stage, so
// repeated forcing computations against one loaded dataset are
// independent.
package ls2d

import "math"

// Version gives the version number of this module.
const Version = "1.2.0"

// Physical constants, IFS values.
const (
	grav  = 9.80665   // gravitational acceleration [m s-2]
	rd    = 287.0597  // gas constant for dry air [J kg-1 K-1]
	rv    = 461.5250  // gas constant for water vapor [J kg-1 K-1]
	cpd   = 1004.709  // specific heat of dry air at constant pressure [J kg-1 K-1]
	lv    = 2.5008e6  // latent heat of vaporization [J kg-1]
	p0    = 1.0e5     // reference pressure for the Exner function [Pa]
	omega = 7.2921e-5 // angular velocity of the Earth [s-1]

	earthRadius = 6.371e6 // mean Earth radius [m]
)

// haversine returns the great-circle distance in meters between two
// points given in degrees latitude/longitude.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

// dlon returns the west-east distance in meters between two meridians
// (degrees longitude) along the circle of the given latitude.
func dlon(lon1, lon2, lat float64) float64 {
	circumference := 2 * math.Pi * earthRadius * math.Cos(lat*math.Pi/180)
	return (lon2 - lon1) / 360 * circumference
}

// dlat returns the south-north distance in meters between two parallels
// (degrees latitude).
func dlat(lat1, lat2 float64) float64 {
	return (lat2 - lat1) / 360 * 2 * math.Pi * earthRadius
}
