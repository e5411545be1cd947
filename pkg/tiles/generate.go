package tiles

import (
	"fmt"

	"tableflip.dev/tilegrid/pkg/grid"
)

var (
	adjectives = []string{"Amber", "Brass", "Cinder", "Dusk", "Ember", "Frost", "Gilded", "Hollow", "Ivory", "Jade", "Kestrel", "Lumen"}
	nouns      = []string{"Archive", "Beacon", "Citadel", "Drake", "Engine", "Falcon", "Grove", "Harbor", "Idol", "Juggernaut", "Keep", "Lantern"}
	sets       = []string{"Core", "Frontier", "Ascent", "Tides"}
)

// Generate returns n deterministic synthetic tiles. Every thirteenth has no
// image, every seventh shows its back face and every eleventh is foil.
func Generate(n int) []grid.TileState {
	if n <= 0 {
		return nil
	}
	out := make([]grid.TileState, n)
	for i := range out {
		id := fmt.Sprintf("tile-%05d", i)
		t := grid.TileState{
			ID:            id,
			PrimaryText:   fmt.Sprintf("%s %s", adjectives[i%len(adjectives)], nouns[(i/len(adjectives))%len(nouns)]),
			SecondaryText: fmt.Sprintf("%s #%d", sets[i%len(sets)], i+1),
			ImageKey:      id,
		}
		if i%13 == 12 {
			t.ImageKey = ""
		}
		if i%7 == 6 {
			t.Flags |= grid.FlagBackFace
		}
		if i%11 == 10 {
			t.Flags |= grid.FlagFoil
		}
		out[i] = t
	}
	return out
}
