package arbor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// testStep is one scripted action.
type testStep struct {
	Action    string  `json:"action"`
	Label     string  `json:"label,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	FromX     float64 `json:"fromX,omitempty"`
	FromY     float64 `json:"fromY,omitempty"`
	ToX       float64 `json:"toX,omitempty"`
	ToY       float64 `json:"toY,omitempty"`
	Frames    int     `json:"frames,omitempty"`
	Modifiers string  `json:"modifiers,omitempty"` // "shift", "ctrl", "shift+ctrl", ...
}

// TestRunner plays a scripted sequence of injected input events and
// screenshots across frames, for automated visual checks of the canvas.
// Attach one to a Scene via SetTestRunner.
type TestRunner struct {
	steps     []testStep
	cursor    int
	waitCount int
	done      bool
}

// LoadTestScript parses a JSON script of the form {"steps": [...]}. The
// returned runner is ready for SetTestRunner.
func LoadTestScript(jsonData []byte) (*TestRunner, error) {
	var script struct {
		Steps []testStep `json:"steps"`
	}
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse test script: no steps")
	}
	return &TestRunner{steps: script.Steps}, nil
}

// SetTestRunner attaches a TestRunner to the scene. The runner advances
// from Scene.Update, before input processing, once per frame.
func (s *Scene) SetTestRunner(runner *TestRunner) {
	s.testRunner = runner
}

// Done reports whether the whole script has been executed.
func (r *TestRunner) Done() bool {
	return r.done
}

var modifierNames = map[string]KeyModifiers{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"meta":    ModMeta,
	"cmd":     ModMeta,
}

// parseModifiers converts a "+"-separated modifier list to KeyModifiers.
// Unknown names are ignored.
func parseModifiers(spec string) KeyModifiers {
	var mods KeyModifiers
	for _, part := range strings.Split(spec, "+") {
		mods |= modifierNames[strings.TrimSpace(strings.ToLower(part))]
	}
	return mods
}

// step advances the runner by one frame. Steps only begin once earlier
// injections have drained and any wait countdown has elapsed.
func (r *TestRunner) step(s *Scene) {
	switch {
	case r.done:
		return
	case len(s.injectQueue) > 0:
		return
	case r.waitCount > 0:
		r.waitCount--
		return
	case r.cursor >= len(r.steps):
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++
	r.run(st, s)

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(s.injectQueue) == 0 {
		r.done = true
	}
}

func (r *TestRunner) run(st testStep, s *Scene) {
	switch st.Action {
	case "screenshot":
		s.Screenshot(st.Label)
	case "click":
		if st.Modifiers == "" {
			s.InjectClick(st.X, st.Y)
		} else {
			s.InjectClickMod(st.X, st.Y, parseModifiers(st.Modifiers))
		}
	case "dblclick":
		// Two clicks back to back: four frames, well inside the
		// double-click window at 60 TPS.
		s.InjectClick(st.X, st.Y)
		s.InjectClick(st.X, st.Y)
	case "drag":
		frames := max(st.Frames, 2)
		if st.Modifiers == "" {
			s.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, frames)
		} else {
			s.InjectDragMod(st.FromX, st.FromY, st.ToX, st.ToY, frames, parseModifiers(st.Modifiers), true)
		}
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	}
}
