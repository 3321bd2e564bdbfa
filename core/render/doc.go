// Package render draws specklists as sized, batched points.
//
// Pipeline (fixed):
//
//	Snapshot → Project → Luminosity → Bucket by pixel size → Batch → Draw call.
//
// The renderer keeps no per-frame state beyond reusable scratch buffers and
// draws into a caller-provided DrawTarget. Three targets are provided: a
// software raster target over an RGB565 framebuffer, an ebiten target that
// issues GPU triangle batches, and a recording target for tests.
package render
