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
)

// An indexRange is a half-open [Start, End) index interval.
type indexRange struct {
	start, end int
}

func (r indexRange) len() int { return r.end - r.start }

// within reports whether the whole range lies inside [0, n).
func (r indexRange) within(n int) bool {
	return r.start >= 0 && r.end <= n && r.start < r.end
}

// expand widens the range by h cells on both sides.
func (r indexRange) expand(h int) indexRange {
	return indexRange{r.start - h, r.end + h}
}

// stencilGeom describes the horizontal geometry a gradient scheme
// operates on: the grid axes, the center cell and averaging half-width,
// and the local grid spacing, treated as constant across the averaging
// domain.
type stencilGeom struct {
	lats, lons []float64
	iC, jC     int // center cell
	nav        int // averaging half-width

	// dx and dy are the local cell spacings at the center [m].
	dx, dy float64
	// distWE and distNS are the center-to-center separations of the
	// east/west and north/south neighbor boxes [m].
	distWE, distNS float64
}

func newStencilGeom(lats, lons []float64, iC, jC, nav int) *stencilGeom {
	return &stencilGeom{
		lats: lats, lons: lons,
		iC: iC, jC: jC, nav: nav,
		dx:     dlon(lons[iC-1], lons[iC+1], lats[jC]) / 2,
		dy:     dlat(lats[jC-1], lats[jC+1]) / 2,
		distWE: dlon(lons[iC-nav-1], lons[iC+nav+1], lats[jC]),
		distNS: dlat(lats[jC-nav-1], lats[jC+nav+1]),
	}
}

// A Scheme estimates horizontal gradients of a gridded field. All
// implementations target the same continuous quantity and agree in the
// zero-gradient limit; they differ in truncation error and in how far
// beyond the averaging box they reach.
type Scheme interface {
	fmt.Stringer

	// halo returns the number of cells the scheme reaches beyond an
	// averaging box of half-width nav.
	halo(nav int) int

	// gradX and gradY return ∂f/∂x (west-east) and ∂f/∂y
	// (south-north) of the (time, level, lat, lon) field f at time t,
	// level k, cell (j, i), in units of f per meter.
	gradX(f *sparse.DenseArray, g *stencilGeom, t, k, j, i int) float64
	gradY(f *sparse.DenseArray, g *stencilGeom, t, k, j, i int) float64
}

// SchemeByName returns the gradient scheme for one of the identifiers
// "box", "2nd" or "4th". An unknown identifier is a configuration
// error.
func SchemeByName(name string) (Scheme, error) {
	switch name {
	case "box":
		return boxScheme{}, nil
	case "2nd":
		return centered2nd{}, nil
	case "4th":
		return centered4th{}, nil
	}
	return nil, fmt.Errorf("ls2d: unknown discretization scheme %q; valid schemes are box, 2nd and 4th", name)
}

// centered2nd is the 2nd-order centered difference, evaluated
// pointwise with a one-cell stencil.
type centered2nd struct{}

func (centered2nd) String() string   { return "2nd" }
func (centered2nd) halo(nav int) int { return 1 }

func (centered2nd) gradX(f *sparse.DenseArray, g *stencilGeom, t, k, j, i int) float64 {
	return (f.Get(t, k, j, i+1) - f.Get(t, k, j, i-1)) / (2 * g.dx)
}

func (centered2nd) gradY(f *sparse.DenseArray, g *stencilGeom, t, k, j, i int) float64 {
	return (f.Get(t, k, j+1, i) - f.Get(t, k, j-1, i)) / (2 * g.dy)
}

// centered4th is the 4th-order centered difference with a two-cell
// stencil (offsets ±1, ±2), trading halo width for truncation order.
type centered4th struct{}

func (centered4th) String() string   { return "4th" }
func (centered4th) halo(nav int) int { return 2 }

func (centered4th) gradX(f *sparse.DenseArray, g *stencilGeom, t, k, j, i int) float64 {
	return (8*(f.Get(t, k, j, i+1)-f.Get(t, k, j, i-1)) -
		(f.Get(t, k, j, i+2) - f.Get(t, k, j, i-2))) / (12 * g.dx)
}

func (centered4th) gradY(f *sparse.DenseArray, g *stencilGeom, t, k, j, i int) float64 {
	return (8*(f.Get(t, k, j+1, i)-f.Get(t, k, j-1, i)) -
		(f.Get(t, k, j+2, i) - f.Get(t, k, j-2, i))) / (12 * g.dy)
}

// boxScheme differences the mean values of the neighbor boxes east/west
// (resp. north/south) of the averaging box. The gradient is constant
// over the averaging box, so the box-averaged advective tendency
// reduces to the mean wind times the box difference.
type boxScheme struct{}

func (boxScheme) String() string   { return "box" }
func (boxScheme) halo(nav int) int { return nav + 1 }

func (boxScheme) gradX(f *sparse.DenseArray, g *stencilGeom, t, k, _, _ int) float64 {
	boxSize := 2*g.nav + 1
	jr := indexRange{g.jC - g.nav, g.jC + g.nav + 1}
	east := boxMean(f, t, k, jr, indexRange{g.iC + 1, g.iC + boxSize + 1})
	west := boxMean(f, t, k, jr, indexRange{g.iC - boxSize, g.iC})
	return (east - west) / g.distWE
}

func (boxScheme) gradY(f *sparse.DenseArray, g *stencilGeom, t, k, _, _ int) float64 {
	boxSize := 2*g.nav + 1
	ir := indexRange{g.iC - g.nav, g.iC + g.nav + 1}
	north := boxMean(f, t, k, indexRange{g.jC + 1, g.jC + boxSize + 1}, ir)
	south := boxMean(f, t, k, indexRange{g.jC - boxSize, g.jC}, ir)
	return (north - south) / g.distNS
}
