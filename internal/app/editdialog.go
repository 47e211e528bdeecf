package app

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/tree"
)

// editDialog edits a node in a draft: nothing touches the tree until OK.
type editDialog struct {
	*dialog
	app *App
	id  string

	titleF   *textField
	diffF    *textField
	ruleF    *textField
	unlocked *checkbox

	objFields []*textField
	objDone   []bool
	rows      *arbor.Node
	listH     float64
}

// openEditDialog opens the full node editor.
func (a *App) openEditDialog(id string) {
	tn := a.tree.FindNode(id)
	if tn == nil {
		return
	}
	const w, h = 440.0, 560.0
	ed := &editDialog{dialog: a.newDialog("edit", w, h), app: a, id: id}
	d := ed.dialog

	y := 16.0
	heading := arbor.NewText("heading", "Edit "+tn.ID, a.theme.TitleFont)
	heading.TextBlock.Color = colorText
	heading.SetPosition(dialogMargin, y)
	d.root.AddChild(heading)
	y += 44

	y = ed.addLabeled("Title", y, func(fx, fw float64) *arbor.Node {
		ed.titleF = a.newTextField(fw, 28, tn.Title, nil)
		ed.addField(ed.titleF)
		return ed.titleF.root
	})

	y = ed.addLabeled("Difficulty", y, func(fx, fw float64) *arbor.Node {
		// Malformed input clamps on OK; no live validation.
		ed.diffF = a.newTextField(72, 28, strconv.Itoa(tn.Difficulty), nil)
		ed.addField(ed.diffF)
		return ed.diffF.root
	})

	y = ed.addLabeled("Rule", y, func(fx, fw float64) *arbor.Node {
		ed.ruleF = a.newTextField(fw, 28, tn.Rule, nil)
		ed.addField(ed.ruleF)
		return ed.ruleF.root
	})

	unlockLabel := a.label("Unlocked", colorText)
	unlockLabel.SetPosition(dialogMargin+28, y)
	d.root.AddChild(unlockLabel)
	ed.unlocked = a.newCheckbox(18, tn.Unlocked, nil)
	ed.unlocked.root.SetPosition(dialogMargin, y)
	d.root.AddChild(ed.unlocked.root)
	y += 38

	objHeading := a.label("Objectives", colorTextDim)
	objHeading.SetPosition(dialogMargin, y)
	d.root.AddChild(objHeading)

	addBtn := a.newButton("+ Add", 72, 24, colorButton, ed.addObjective)
	addBtn.root.SetPosition(w-dialogMargin-72, y-2)
	d.root.AddChild(addBtn.root)
	y += 30

	// Scrollable draft objective rows.
	ed.listH = h - y - 74
	clip := arbor.NewContainer("objective_rows")
	clip.SetPosition(dialogMargin, y)
	clip.SetMask(a.rectSprite("clip", w-dialogMargin*2, ed.listH, arbor.ColorWhite))
	d.root.AddChild(clip)
	ed.rows = arbor.NewContainer("rows")
	clip.AddChild(ed.rows)

	for _, o := range tn.Objectives {
		ed.objFields = append(ed.objFields, nil) // placeholder, built below
		ed.objDone = append(ed.objDone, o.Done)
	}
	for i, o := range tn.Objectives {
		ed.buildRow(i, o.Text)
	}

	d.onWheel = func(dy float64) {
		overflow := float64(len(ed.objFields))*objRowHeight - ed.listH
		if overflow <= 0 {
			return
		}
		yy := ed.rows.Y + dy*objRowHeight
		if yy > 0 {
			yy = 0
		}
		if yy < -overflow {
			yy = -overflow
		}
		ed.rows.SetPosition(0, yy)
	}

	del := a.newButton("Delete node", 110, 34, colorDanger, ed.deleteNode)
	del.root.SetPosition(dialogMargin, h-54)
	d.root.AddChild(del.root)

	cancel := a.newButton("Cancel", 86, 34, colorButton, func() { d.close() })
	cancel.root.SetPosition(w-dialogMargin-86-94, h-54)
	d.root.AddChild(cancel.root)

	ok := a.newButton("OK", 86, 34, colorButton, ed.commit)
	ok.root.SetPosition(w-dialogMargin-86, h-54)
	d.root.AddChild(ok.root)

	a.dimAround(id)
	d.open()
	a.focusField(ed.titleF)
}

// addLabeled lays out a "label: field" row and returns the next row's y.
func (ed *editDialog) addLabeled(caption string, y float64, build func(fx, fw float64) *arbor.Node) float64 {
	const labelW = 92.0
	w := ed.w
	lbl := ed.app.label(caption, colorTextDim)
	lbl.SetPosition(dialogMargin, y+4)
	ed.root.AddChild(lbl)

	field := build(dialogMargin+labelW, w-dialogMargin*2-labelW)
	field.SetPosition(dialogMargin+labelW, y)
	ed.root.AddChild(field)
	return y + 38
}

// buildRow creates the widgets for draft objective i.
func (ed *editDialog) buildRow(i int, text string) {
	a := ed.app
	row := arbor.NewContainer(fmt.Sprintf("row%d", i))
	row.SetPosition(0, float64(i)*objRowHeight)

	f := a.newTextField(ed.w-dialogMargin*2-36, 26, text, nil)
	ed.objFields[i] = f
	ed.addField(f)
	row.AddChild(f.root)

	rm := a.newButton("x", 26, 26, colorDanger, func() { ed.removeObjective(i) })
	rm.root.SetPosition(ed.w-dialogMargin*2-28, 0)
	row.AddChild(rm.root)

	ed.rows.AddChild(row)
}

// addObjective appends an empty draft row.
func (ed *editDialog) addObjective() {
	ed.objFields = append(ed.objFields, nil)
	ed.objDone = append(ed.objDone, false)
	ed.buildRow(len(ed.objFields)-1, "")
	ed.app.focusField(ed.objFields[len(ed.objFields)-1])
}

// removeObjective drops draft row i and rebuilds the remaining rows so
// indices and positions stay dense.
func (ed *editDialog) removeObjective(i int) {
	texts := make([]string, 0, len(ed.objFields)-1)
	done := make([]bool, 0, len(ed.objDone)-1)
	for j, f := range ed.objFields {
		if j == i {
			continue
		}
		texts = append(texts, f.String())
		done = append(done, ed.objDone[j])
	}

	ed.rows.RemoveChildren()
	ed.fields = ed.fields[:3] // title, difficulty, rule survive
	ed.objFields = make([]*textField, len(texts))
	ed.objDone = done
	for j, t := range texts {
		ed.buildRow(j, t)
	}
	ed.app.focusField(nil)
}

// commit writes the draft back to the tree, persists, and closes.
func (ed *editDialog) commit() {
	a := ed.app
	tn := a.tree.FindNode(ed.id)
	if tn == nil {
		ed.close()
		return
	}
	a.focusField(nil)

	a.tree.SetTitle(ed.id, ed.titleF.String())
	a.tree.SetDifficulty(ed.id, tree.ParseDifficulty(ed.diffF.String()))
	a.tree.SetUnlocked(ed.id, ed.unlocked.value)
	tn.Rule = ed.ruleF.String()

	objectives := tn.Objectives[:0]
	for i, f := range ed.objFields {
		text := f.String()
		if text == "" {
			continue
		}
		objectives = append(objectives, tree.Objective{Text: text, Done: ed.objDone[i]})
	}
	tn.Objectives = objectives

	a.persistNode(ed.id)
	if m := a.markers[ed.id]; m != nil {
		m.restyle()
	}
	ed.close()
	a.applyRules()
}

// deleteNode removes the node, its edges, and its marker.
func (ed *editDialog) deleteNode() {
	a := ed.app
	a.tree.RemoveNode(ed.id)
	if err := a.store.DeleteNode(a.tree, ed.id); err != nil {
		slog.Warn("persist delete failed", "node", ed.id, "err", err)
	}
	a.removeMarker(ed.id)
	a.links.sync()
	ed.close()
}
