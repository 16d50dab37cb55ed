package depthcodec

import (
	"image"
	"image/color"

	"ibr-renderer/internal/mathutil"
)

// Polynomial fit of matplotlib's plasma colormap, one coefficient triple per
// power of t.
var plasmaCoeffs = [7][3]float64{
	{0.05873234392399702, 0.02333670892565664, 0.5433401826748754},
	{2.176514634195958, 0.2383834171260182, 0.7539604599784036},
	{-2.689460476458034, -7.455851135738909, 3.110799939717086},
	{6.130348345893603, 42.3461881477227, -28.51885465332158},
	{-11.10743619062271, -82.66631109428045, 60.13984767418263},
	{10.02306557647065, 71.41361770095349, -54.07218655560067},
	{-3.658713842777788, -22.93153465461149, 18.19190778539828},
}

// Plasma maps t in [0, 1] to the plasma colormap. It is lossy and only
// meant for debug display of depth values.
func Plasma(t float64) color.NRGBA {
	t = mathutil.Clamp(t, 0, 1)
	var rgb [3]float64
	for k := len(plasmaCoeffs) - 1; k >= 0; k-- {
		for c := 0; c < 3; c++ {
			rgb[c] = rgb[c]*t + plasmaCoeffs[k][c]
		}
	}
	return color.NRGBA{
		R: to8(rgb[0]),
		G: to8(rgb[1]),
		B: to8(rgb[2]),
		A: 255,
	}
}

// Visualize renders encoded depth values (row-major, w×h) through the
// plasma colormap. Far values are drawn black.
func Visualize(values []float32, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h && i < len(values); i++ {
		c := float64(values[i])
		var px color.NRGBA
		if IsFar(c) {
			px = color.NRGBA{A: 255}
		} else {
			px = Plasma(1 - c)
		}
		o := i * 4
		img.Pix[o] = px.R
		img.Pix[o+1] = px.G
		img.Pix[o+2] = px.B
		img.Pix[o+3] = px.A
	}
	return img
}

func to8(v float64) uint8 {
	return uint8(mathutil.Clamp(v, 0, 1)*255 + 0.5)
}
