// lab.go implements LAB color conversion as its own pure function, kept
// separate per spec.md §9's recommendation ("LAB conversion: perform in
// a dedicated pure function"). D65 white point, CIE76 ΔE.
package scoring

import "math"

// D65 reference white in CIE XYZ (normalized to Y=100).
const (
	whiteX = 95.047
	whiteY = 100.000
	whiteZ = 108.883
)

// LAB is a point in CIE L*a*b* space.
type LAB struct {
	L, A, B float64
}

// RGBToLAB converts gamma-encoded 8-bit RGB to CIE L*a*b* under D65,
// mirroring the gamma-decode-then-convert shape this module's teacher
// pack uses for its own perceptual color comparison.
func RGBToLAB(r, g, b uint8) LAB {
	rl := srgbToLinear(float64(r) / 255)
	gl := srgbToLinear(float64(g) / 255)
	bl := srgbToLinear(float64(b) / 255)

	x := (rl*0.4124 + gl*0.3576 + bl*0.1805) * 100
	y := (rl*0.2126 + gl*0.7152 + bl*0.0722) * 100
	z := (rl*0.0193 + gl*0.1192 + bl*0.9505) * 100

	return xyzToLAB(x, y, z)
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func xyzToLAB(x, y, z float64) LAB {
	fx := labF(x / whiteX)
	fy := labF(y / whiteY)
	fz := labF(z / whiteZ)
	return LAB{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

// DeltaE76 is the CIE76 Euclidean distance between two LAB points.
func DeltaE76(a, b LAB) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}
