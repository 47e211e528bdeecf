package arbor

import (
	"math"
	"testing"

	"github.com/tanema/gween/ease"
)

func TestTweenAlphaFadesOut(t *testing.T) {
	backdrop := NewContainer("backdrop")
	backdrop.Alpha = 1.0

	tw := TweenAlpha(backdrop, 0.0, 1.0, ease.Linear)

	tw.Update(0.5)
	if tw.Done {
		t.Fatal("fade must still be running at the halfway point")
	}
	if math.Abs(backdrop.Alpha-0.5) > 0.05 {
		t.Errorf("Alpha = %f at halfway, want ~0.5", backdrop.Alpha)
	}

	tw.Update(0.5)
	if !tw.Done {
		t.Fatal("fade must finish after the full duration")
	}
	if math.Abs(backdrop.Alpha) > 0.01 {
		t.Errorf("Alpha = %f after fade, want ~0", backdrop.Alpha)
	}
}

func TestTweenScalePopsBothAxes(t *testing.T) {
	badge := NewContainer("badge")

	tw := TweenScale(badge, 1.4, 1.4, 0.5, ease.Linear)
	tw.Update(0.25)
	tw.Update(0.25)

	if !tw.Done {
		t.Fatal("scale pop must finish after the full duration")
	}
	if math.Abs(badge.ScaleX-1.4) > 0.01 || math.Abs(badge.ScaleY-1.4) > 0.01 {
		t.Errorf("scale = (%f, %f), want (1.4, 1.4)", badge.ScaleX, badge.ScaleY)
	}
}

func TestTweenGroupDoneStaysDone(t *testing.T) {
	n := NewContainer("pulse")
	tw := TweenScale(n, 2, 2, 0.5, ease.Linear)

	if tw.Done {
		t.Fatal("new group must not start Done")
	}
	tw.Update(0.25)
	if tw.Done {
		t.Fatal("group must not be Done partway through")
	}
	tw.Update(0.25)
	if !tw.Done {
		t.Fatal("group must be Done after the full duration")
	}

	// Further updates are no-ops.
	before := n.ScaleX
	tw.Update(0.1)
	if !tw.Done || n.ScaleX != before {
		t.Error("a finished group must not keep writing")
	}
}

func TestTweenGroupMarksTargetDirty(t *testing.T) {
	n := NewContainer("glow")
	n.transformDirty = false

	tw := TweenAlpha(n, 0, 1.0, ease.Linear)
	tw.Update(0.1)

	if !n.transformDirty {
		t.Fatal("tween update must mark the node dirty")
	}
}

func TestTweenGroupStopsOnDisposedTarget(t *testing.T) {
	n := NewContainer("closing")
	n.Alpha = 0.8

	tw := TweenAlpha(n, 0, 1.0, ease.Linear)
	tw.Update(0.1)
	if tw.Done {
		t.Fatal("tween finished too early")
	}

	n.Dispose()
	saved := n.Alpha

	tw.Update(0.1)
	if !tw.Done {
		t.Fatal("tween must report Done once its node is disposed")
	}
	if n.Alpha != saved {
		t.Errorf("Alpha changed to %f after disposal", n.Alpha)
	}
}

func TestTweenEasingShapesDiffer(t *testing.T) {
	linear := NewContainer("a")
	cubic := NewContainer("b")
	linear.Alpha = 0
	cubic.Alpha = 0

	twL := TweenAlpha(linear, 1, 1.0, ease.Linear)
	twC := TweenAlpha(cubic, 1, 1.0, ease.OutCubic)
	twL.Update(0.5)
	twC.Update(0.5)

	// OutCubic runs ahead of linear mid-animation.
	if cubic.Alpha <= linear.Alpha {
		t.Errorf("OutCubic midpoint %f should exceed linear %f", cubic.Alpha, linear.Alpha)
	}
}

func TestTweenGroupUpdateZeroAlloc(t *testing.T) {
	n := NewContainer("steady")
	tw := TweenScale(n, 3, 3, 1.0, ease.Linear)
	tw.Update(0.01)

	allocs := testing.AllocsPerRun(100, func() {
		tw.Update(0.001)
	})
	if allocs > 0 {
		t.Errorf("TweenGroup.Update allocated %f times per run, want 0", allocs)
	}
}
