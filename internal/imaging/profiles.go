// Package imaging turns uploaded originals into the WebP variants served by the
// image handler.
package imaging

import (
	"context"
	"sort"
)

type Fit string

const (
	// FitScaleDown shrinks to the profile width, keeping the aspect ratio.
	// Images already narrower are left alone.
	FitScaleDown Fit = "scale-down"
	// FitCover scales to fill width x height and centre-crops the overflow.
	FitCover Fit = "cover"
)

// Profile is one output variant. Height 0 means unconstrained.
type Profile struct {
	Name    string
	Width   int
	Height  int
	Fit     Fit
	Quality int
}

const DefaultProfile = "content"

var profiles = map[string]Profile{
	"content": {Name: "content", Width: 800, Fit: FitScaleDown, Quality: 85},
	"thumb":   {Name: "thumb", Width: 300, Height: 200, Fit: FitCover, Quality: 80},
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Transformer interface {
	// Transform re-encodes src as WebP according to p.
	Transform(ctx context.Context, src []byte, p Profile) ([]byte, error)
}

// geometry computes the resize scale and the crop box for a source of
// srcW x srcH. A zero crop means no crop.
func geometry(srcW, srcH int, p Profile) (scale float64, cropW, cropH int) {
	if srcW <= 0 || srcH <= 0 {
		return 1, 0, 0
	}

	switch p.Fit {
	case FitCover:
		if p.Height <= 0 {
			return float64(p.Width) / float64(srcW), 0, 0
		}
		sx := float64(p.Width) / float64(srcW)
		sy := float64(p.Height) / float64(srcH)
		scale = sx
		if sy > scale {
			scale = sy
		}
		return scale, p.Width, p.Height
	default:
		scale = 1
		if p.Width > 0 && srcW > p.Width {
			scale = float64(p.Width) / float64(srcW)
		}
		if p.Height > 0 && float64(srcH)*scale > float64(p.Height) {
			scale = float64(p.Height) / float64(srcH)
		}
		return scale, 0, 0
	}
}
