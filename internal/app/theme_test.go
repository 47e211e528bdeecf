package app

import (
	"testing"

	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/tree"
)

func TestTierOf(t *testing.T) {
	cases := []struct {
		difficulty int
		want       int
	}{
		{0, tierBronze},
		{10, tierBronze},
		{11, tierSilver},
		{21, tierSilver},
		{22, tierGold},
		{33, tierGold},
	}
	for _, c := range cases {
		if got := tierOf(c.difficulty); got != c.want {
			t.Errorf("tierOf(%d) = %d, want %d", c.difficulty, got, c.want)
		}
	}
}

func TestTierColorsDistinct(t *testing.T) {
	if tierColors[tierBronze] == tierColors[tierSilver] ||
		tierColors[tierSilver] == tierColors[tierGold] ||
		tierColors[tierBronze] == tierColors[tierGold] {
		t.Error("tier colors should be distinct")
	}
}

func TestIconName(t *testing.T) {
	th := &Theme{}
	if got := th.IconName(5); got != "level_bronze" {
		t.Errorf("IconName(5) = %q", got)
	}
	if got := th.IconName(15); got != "level_silver" {
		t.Errorf("IconName(15) = %q", got)
	}
	if got := th.IconName(30); got != "level_gold" {
		t.Errorf("IconName(30) = %q", got)
	}
}

func TestNodeTint(t *testing.T) {
	locked := &tree.Node{}
	unlocked := &tree.Node{Unlocked: true}
	if nodeTint(locked) == nodeTint(unlocked) {
		t.Error("locked and unlocked tints should differ")
	}
	if nodeTint(unlocked) != colorUnlocked {
		t.Errorf("unlocked tint = %v, want %v", nodeTint(unlocked), colorUnlocked)
	}
}

func TestNewThemeProceduralFallbacks(t *testing.T) {
	th := NewTheme(config.ThemeConfig{})

	if th.Font == nil || th.TitleFont == nil {
		t.Fatal("fonts should always load")
	}
	if th.Disc == nil || th.Ring == nil || th.Halo == nil || th.Dash == nil || th.Solid == nil {
		t.Fatal("procedural textures should all be generated")
	}
	if th.Panel == nil || th.PanelInset <= 0 {
		t.Fatal("procedural panel should be generated with a positive inset")
	}
	if th.HasIcons() {
		t.Error("no icon pack configured, HasIcons should be false")
	}
	if th.Background != nil {
		t.Error("no background configured, Background should be nil")
	}
}

func TestDashImageTileable(t *testing.T) {
	img := makeDashImage()
	b := img.Bounds()
	if b.Dx() != 128 || b.Dy() != 8 {
		t.Errorf("dash image is %dx%d, want 128x8", b.Dx(), b.Dy())
	}
}

func TestRoundedRectDistance(t *testing.T) {
	// Center of a 40x40 rect with radius 8 is well inside: distance
	// should be clearly negative.
	if d := roundedRectDistance(20, 20, 40, 40, 8); d >= 0 {
		t.Errorf("center distance = %f, want negative", d)
	}
	// A point far outside is positive.
	if d := roundedRectDistance(100, 100, 40, 40, 8); d <= 0 {
		t.Errorf("outside distance = %f, want positive", d)
	}
}
