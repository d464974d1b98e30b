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

// different reports whether a and b differ by more than the given
// relative tolerance.
func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	return 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func TestDistances(t *testing.T) {
	const testTolerance = 1e-9

	// One meridional degree is the same length everywhere, and the
	// distances are signed.
	oneDegree := math.Pi / 180 * earthRadius
	if got := dlat(10, 11); different(got, oneDegree, testTolerance) {
		t.Errorf("dlat(10, 11) = %v, want %v", got, oneDegree)
	}
	if got := dlat(52, 51); different(got, -oneDegree, testTolerance) {
		t.Errorf("dlat(52, 51) = %v, want %v", got, -oneDegree)
	}

	// Zonal degrees shrink with the cosine of latitude.
	if got := dlon(4, 5, 0); different(got, oneDegree, testTolerance) {
		t.Errorf("dlon(4, 5, 0) = %v, want %v", got, oneDegree)
	}
	if got := dlon(4, 5, 60); different(got, oneDegree/2, 1e-9) {
		t.Errorf("dlon(4, 5, 60) = %v, want %v", got, oneDegree/2)
	}
}

func TestHaversine(t *testing.T) {
	const testTolerance = 1e-9

	if got := haversine(52, 4, 52, 4); got != 0 {
		t.Errorf("distance of a point to itself = %v", got)
	}
	a := haversine(52, 4, 51, 5)
	b := haversine(51, 5, 52, 4)
	if different(a, b, testTolerance) {
		t.Errorf("haversine not symmetric: %v vs %v", a, b)
	}
	// Along a meridian the great circle is the meridional arc.
	want := dlat(10, 12)
	if got := haversine(10, 30, 12, 30); different(got, want, 1e-9) {
		t.Errorf("meridional haversine = %v, want %v", got, want)
	}
}
