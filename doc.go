// Package arbor is an interactive skill tree studio for [Ebitengine].
//
// Arbor draws a pannable, zoomable canvas of circular skill nodes connected
// by animated rope links, with in-scene dialogs for viewing and editing each
// node's objectives. The retained scene graph, cameras, input handling,
// rope geometry, and shader filters in this package are the toolkit; the
// tree and store subpackages hold the data model and persistence;
// cmd/arbor ships the editor.
//
// # Quick start
//
// The simplest way to get a window is [Run], which creates the game loop
// for you:
//
//	scene := arbor.NewScene()
//	// ... add nodes ...
//	arbor.Run(scene, arbor.RunConfig{
//		Title: "Arbor", Width: 1280, Height: 800,
//	})
//
// Programs that need their own [ebiten.Game] implementation skip [Run] and
// call [Scene.Update] and [Scene.Draw] from it directly.
//
// # Scene graph
//
// Each visual element on the canvas is a [Node] in a tree hanging off
// [Scene.Root]; transform and alpha flow down from parent to child.
//
// Create nodes with typed constructors: [NewContainer], [NewSprite],
// [NewText], [NewParticleEmitter], [NewMesh], [NewPolygon], and others.
//
//	canvas := arbor.NewContainer("canvas")
//	scene.Root().AddChild(canvas)
//
//	marker := arbor.NewSprite("skill", discRegion)
//	marker.X, marker.Y = 100, 50
//	canvas.AddChild(marker)
//
// # Key features
//
// Cameras with scroll-to/zoom, rope link geometry (straight and quadratic
// Bezier), Kage shader filters (glow, outline, color matrix), bitmap and
// TTF text, CPU particles, a focus layer for dimmed modal backdrops,
// masking, tweens (via [gween]), and a scripted input injector for
// end-to-end tests.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package arbor
