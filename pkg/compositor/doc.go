// Package compositor turns a scene into an ordered list of draw
// instructions for one render pass.
//
// The work is split in two stages:
//
//   - [Plan] is pure. Given a scene, a viewport and the background's
//     natural size it computes the fit box, resolves each visible layer's
//     selected image and effective transform, places it with
//     [geometry.PlaceTransform] and sorts the result by z (stable, so equal
//     z keeps layer list order).
//   - [Compositor.Compose] acquires the background and the selected images
//     concurrently, waits for all of them to settle, plans against the
//     decoded background size and drops the layers whose image failed.
//
// Both renderers (the live preview and the export rasterizer) consume the
// same instructions; neither computes placement on its own.
//
// A [Supervisor] tracks the current pass. Beginning a new pass cancels the
// previous one, and committing a stale pass returns [ErrSuperseded] so its
// results are discarded.
package compositor
