// Package export flattens a scene into a single raster image at a fixed
// preset resolution.
//
// The [Rasterizer] creates an offscreen surface of the preset size, fills
// it, composes the scene against that size with the compositor, draws the
// background into the fit box and each instruction rotated about its
// center with contain scaling, then encodes PNG or JPEG.
//
// Layer images that fail to load are skipped and reported in
// [Result.Skipped]; the composite is still produced. Only a surface that
// cannot be created (or an encoder failure) is fatal and returned as an
// [*ExportError].
package export
