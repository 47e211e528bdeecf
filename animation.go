package arbor

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// tweenChannel drives a single float64 field toward its target value.
type tweenChannel struct {
	tw    *gween.Tween
	field *float64
}

// TweenGroup animates one or more float64 fields on a Node in lockstep,
// e.g. a dialog fading in or a marker popping on unlock. Call Update(dt)
// every frame until Done; there is no global animation manager. A group
// whose node gets disposed mid-flight stops writing and reports Done.
type TweenGroup struct {
	channels []tweenChannel
	target   *Node
	Done     bool
}

func newTweenGroup(target *Node) *TweenGroup {
	return &TweenGroup{target: target}
}

func (g *TweenGroup) add(field *float64, to float64, duration float32, fn ease.TweenFunc) {
	g.channels = append(g.channels, tweenChannel{
		tw:    gween.New(float32(*field), float32(to), duration, fn),
		field: field,
	})
}

// Update advances every channel by dt seconds and marks the node dirty.
// Done flips once all channels have reached their targets.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	finished := true
	for _, ch := range g.channels {
		val, done := ch.tw.Update(dt)
		*ch.field = float64(val)
		if !done {
			finished = false
		}
	}
	g.Done = finished

	if g.target != nil {
		g.target.MarkDirty()
	}
}

// TweenAlpha animates node.Alpha to the target value.
func TweenAlpha(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node)
	g.add(&node.Alpha, to, duration, fn)
	return g
}

// TweenScale animates node.ScaleX and node.ScaleY together.
func TweenScale(node *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node)
	g.add(&node.ScaleX, toSX, duration, fn)
	g.add(&node.ScaleY, toSY, duration, fn)
	return g
}
