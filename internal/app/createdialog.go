package app

import (
	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/tree"
)

// openCreateDialog prompts for a new node at the given world position.
func (a *App) openCreateDialog(wx, wy float64) {
	const w, h = 320.0, 210.0
	d := a.newDialog("create", w, h)

	heading := arbor.NewText("heading", "New node", a.theme.TitleFont)
	heading.TextBlock.Color = colorText
	heading.SetPosition(dialogMargin, 16)
	d.root.AddChild(heading)

	titleLabel := a.label("Title", colorTextDim)
	titleLabel.SetPosition(dialogMargin, 62)
	d.root.AddChild(titleLabel)
	titleF := a.newTextField(w-dialogMargin*2-80, 28, "", nil)
	titleF.root.SetPosition(dialogMargin+80, 58)
	d.root.AddChild(titleF.root)
	d.addField(titleF)

	diffLabel := a.label("Difficulty", colorTextDim)
	diffLabel.SetPosition(dialogMargin, 100)
	d.root.AddChild(diffLabel)
	diffF := a.newTextField(72, 28, "0", nil)
	diffF.root.SetPosition(dialogMargin+80, 96)
	d.root.AddChild(diffF.root)
	d.addField(diffF)

	create := func() {
		a.focusField(nil)
		tn := a.tree.AddNode(&tree.Node{
			X:          wx,
			Y:          wy,
			Title:      titleF.String(),
			Difficulty: tree.ParseDifficulty(diffF.String()),
		})
		a.persistNode(tn.ID)
		a.addMarker(tn)
		d.close()
	}

	cancel := a.newButton("Cancel", 86, 34, colorButton, func() { d.close() })
	cancel.root.SetPosition(dialogMargin, h-54)
	d.root.AddChild(cancel.root)

	ok := a.newButton("Create", 86, 34, colorButton, create)
	ok.root.SetPosition(w-dialogMargin-86, h-54)
	d.root.AddChild(ok.root)

	d.open()
	a.focusField(titleF)
}
