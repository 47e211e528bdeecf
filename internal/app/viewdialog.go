package app

import (
	"fmt"
	"log/slog"

	"github.com/phanxgames/arbor"
)

const (
	dialogMargin = 20
	objRowHeight = 30.0
)

// openViewDialog shows a node's details: title, difficulty, unlock state,
// and the objectives list with toggleable checkboxes. Toggles persist
// immediately.
func (a *App) openViewDialog(id string) {
	tn := a.tree.FindNode(id)
	if tn == nil {
		return
	}
	const w, h = 380.0, 460.0
	d := a.newDialog("view", w, h)

	title := tn.Title
	if title == "" {
		title = tn.ID
	}
	titleNode := arbor.NewText("title", title, a.theme.TitleFont)
	titleNode.TextBlock.Color = colorText
	titleNode.TextBlock.WrapWidth = w - dialogMargin*2
	titleNode.SetPosition(dialogMargin, 16)
	d.root.AddChild(titleNode)

	state := "Locked"
	if tn.Unlocked {
		state = "Unlocked"
	}
	info := a.label(fmt.Sprintf("Difficulty %d · %s", tn.Difficulty, state), colorTextDim)
	info.SetPosition(dialogMargin, 54)
	d.root.AddChild(info)

	progress := a.label("", colorTextDim)
	progress.SetPosition(dialogMargin, h-104)
	d.root.AddChild(progress)
	refreshProgress := func() {
		done, total := a.tree.Progress(id)
		text := "No objectives yet"
		if total > 0 {
			text = fmt.Sprintf("%d of %d complete", done, total)
		}
		progress.TextBlock.Content = text
		progress.TextBlock.Invalidate()
	}
	refreshProgress()

	// Scrollable objectives list, clipped by a mask.
	listW, listH := w-dialogMargin*2, h-196.0
	clip := arbor.NewContainer("objectives")
	clip.SetPosition(dialogMargin, 84)
	maskRect := a.rectSprite("clip", listW, listH, arbor.ColorWhite)
	clip.SetMask(maskRect)
	d.root.AddChild(clip)

	rows := arbor.NewContainer("rows")
	clip.AddChild(rows)

	for i := range tn.Objectives {
		idx := i
		row := arbor.NewContainer("row")
		row.SetPosition(0, float64(i)*objRowHeight)

		text := a.label(tn.Objectives[i].Text, objectiveColor(tn.Objectives[i].Done))
		cb := a.newCheckbox(18, tn.Objectives[i].Done, func(done bool) {
			a.tree.ToggleObjective(id, idx)
			// The widget already flipped; the model call above flipped the
			// record to match it.
			text.TextBlock.Color = objectiveColor(done)
			text.TextBlock.Invalidate()
			refreshProgress()
			a.persistNode(id)
			a.onObjectivesChanged(id)
		})
		row.AddChild(cb.root)
		text.SetPosition(28, 0)
		row.AddChild(text)
		rows.AddChild(row)
	}

	// Wheel scrolls when the rows overflow the clip region.
	overflow := float64(len(tn.Objectives))*objRowHeight - listH
	if overflow > 0 {
		d.onWheel = func(dy float64) {
			y := rows.Y + dy*objRowHeight
			if y > 0 {
				y = 0
			}
			if y < -overflow {
				y = -overflow
			}
			rows.SetPosition(0, y)
		}
	}

	edit := a.newButton("Edit", 100, 34, colorButton, func() {
		d.close()
		a.openEditDialog(id)
	})
	edit.root.SetPosition(w-dialogMargin-100, h-54)
	d.root.AddChild(edit.root)

	closeBtn := a.newButton("Close", 100, 34, colorButton, func() { d.close() })
	closeBtn.root.SetPosition(dialogMargin, h-54)
	d.root.AddChild(closeBtn.root)

	a.dimAround(id)
	d.open()
}

func objectiveColor(done bool) arbor.Color {
	if done {
		return colorTextDim
	}
	return colorText
}

// persistNode saves one node record, logging instead of surfacing failures.
func (a *App) persistNode(id string) {
	tn := a.tree.FindNode(id)
	if tn == nil {
		return
	}
	if err := a.store.SaveNode(a.tree, tn); err != nil {
		slog.Warn("persist node failed", "node", id, "err", err)
	}
}

// onObjectivesChanged runs the completion celebration and the unlock rules
// after an objective mutation.
func (a *App) onObjectivesChanged(id string) {
	done, total := a.tree.Progress(id)
	if total > 0 && done == total {
		if m := a.markers[id]; m != nil {
			a.celebrate(m)
		}
	}
	a.applyRules()
}
