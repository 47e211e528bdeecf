package arbor

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// computeLocalTransform builds the node's local affine matrix,
// [a, b, c, d, tx, ty], composed as
//
//	Translate(-PivotX, -PivotY) -> Scale -> Rotate -> Translate(X, Y)
//
// so a marker rotates and scales about its pivot, then lands at (X, Y).
func computeLocalTransform(n *Node) [6]float64 {
	sin, cos := math.Sincos(n.Rotation)
	sx, sy := n.ScaleX, n.ScaleY

	// Scale * Translate(-pivot) leaves tx=-px*sx, ty=-py*sy.
	preTx := -n.PivotX * sx
	preTy := -n.PivotY * sy

	// Rotate, then Translate(X, Y).
	return [6]float64{
		cos * sx,
		sin * sx,
		-sin * sy,
		cos * sy,
		cos*preTx - sin*preTy + n.X,
		sin*preTx + cos*preTy + n.Y,
	}
}

// multiplyAffine composes two affine matrices, outer applied after inner.
// The [a, b, c, d, tx, ty] layout corresponds to the column-major 3x3
//
//	a c tx
//	b d ty
//	0 0  1
func multiplyAffine(outer, inner [6]float64) [6]float64 {
	var out [6]float64
	out[0] = outer[0]*inner[0] + outer[2]*inner[1]
	out[1] = outer[1]*inner[0] + outer[3]*inner[1]
	out[2] = outer[0]*inner[2] + outer[2]*inner[3]
	out[3] = outer[1]*inner[2] + outer[3]*inner[3]
	out[4] = outer[0]*inner[4] + outer[2]*inner[5] + outer[4]
	out[5] = outer[1]*inner[4] + outer[3]*inner[5] + outer[5]
	return out
}

// invertAffine computes the inverse of a 2D affine matrix, or the identity
// when the matrix is singular (determinant ~ 0).
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if math.Abs(det) < 1e-12 {
		return identityTransform
	}
	inv := 1.0 / det
	a, b := m[3]*inv, -m[1]*inv
	c, d := -m[2]*inv, m[0]*inv
	tx := -(a*m[4] + c*m[5])
	ty := -(b*m[4] + d*m[5])
	return [6]float64{a, b, c, d, tx, ty}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// updateWorldTransform recomputes a node's worldTransform and worldAlpha.
// parentRecomputed forces recomputation even when this node is clean,
// since a moved parent moves the whole subtree.
func updateWorldTransform(n *Node, parentTransform [6]float64, parentAlpha float64, parentRecomputed bool) {
	recomputed := parentRecomputed || n.transformDirty
	if recomputed {
		n.worldTransform = multiplyAffine(parentTransform, computeLocalTransform(n))
		n.worldAlpha = parentAlpha * n.Alpha
		n.transformDirty = false
	}

	for _, child := range n.children {
		updateWorldTransform(child, n.worldTransform, n.worldAlpha, recomputed)
	}
}

// --- Transform property setters ---

// touchTransform marks the node dirty and notifies any enclosing auto-mode
// tree cache. The cache notice walks up from the PARENT: a cached node
// moving as a whole is handled by replay-time delta remapping and must not
// discard its own recording.
func (n *Node) touchTransform() {
	n.transformDirty = true
	invalidateAutoCaches(n.Parent)
}

// SetPosition moves the node to local coordinates (x, y).
func (n *Node) SetPosition(x, y float64) {
	n.X, n.Y = x, y
	n.touchTransform()
}

// SetScale changes the node's horizontal and vertical scale factors.
func (n *Node) SetScale(sx, sy float64) {
	n.ScaleX, n.ScaleY = sx, sy
	n.touchTransform()
}

// SetRotation changes the node's rotation, in radians.
func (n *Node) SetRotation(r float64) {
	n.Rotation = r
	n.touchTransform()
}

// SetPivot moves the point the node scales and rotates about.
func (n *Node) SetPivot(px, py float64) {
	n.PivotX, n.PivotY = px, py
	n.touchTransform()
}

// SetAlpha changes the node's opacity.
func (n *Node) SetAlpha(a float64) {
	n.Alpha = a
	n.touchTransform()
}

// MarkDirty forces transform recomputation on the next frame. Useful after
// bulk-setting fields directly.
func (n *Node) MarkDirty() { n.touchTransform() }

// --- Coordinate conversion ---

// WorldToLocal converts a world-space point to this node's local space.
func (n *Node) WorldToLocal(wx, wy float64) (lx, ly float64) {
	return transformPoint(invertAffine(n.worldTransform), wx, wy)
}

// LocalToWorld converts a local-space point to world space.
func (n *Node) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return transformPoint(n.worldTransform, lx, ly)
}
