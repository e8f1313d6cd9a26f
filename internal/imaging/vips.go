package imaging

import (
	"context"
	"fmt"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"inkwell/internal/logger"
)

// VipsTransformer runs profiles through libvips. vips.Startup must have been
// called before the first Transform.
type VipsTransformer struct {
	logger *zap.Logger
}

func NewVipsTransformer(log *zap.Logger) *VipsTransformer {
	return &VipsTransformer{logger: logger.Component(log, "VipsTransformer")}
}

func (t *VipsTransformer) Transform(ctx context.Context, src []byte, p Profile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	image, err := vips.NewImageFromBuffer(src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer image.Close()

	srcW, srcH := image.Width(), image.Height()
	scale, cropW, cropH := geometry(srcW, srcH, p)

	// Step 1: Resize
	if scale != 1 {
		resizeOpts := vips.DefaultResizeOptions()
		resizeOpts.Kernel = vips.KernelLanczos3
		if err := image.Resize(scale, resizeOpts); err != nil {
			return nil, fmt.Errorf("failed to resize: %w", err)
		}
	}

	// Step 2: Centre crop for cover profiles. Rounding in Resize can leave the
	// image a pixel short, so the box is clamped.
	if cropW > 0 && cropH > 0 {
		w, h := image.Width(), image.Height()
		if cropW > w {
			cropW = w
		}
		if cropH > h {
			cropH = h
		}
		left := (w - cropW) / 2
		top := (h - cropH) / 2
		if err := image.ExtractArea(left, top, cropW, cropH); err != nil {
			return nil, fmt.Errorf("failed to crop: %w", err)
		}
	}

	// Step 3: Export as WebP
	webpOpts := vips.DefaultWebpsaveBufferOptions()
	webpOpts.Q = p.Quality

	out, err := image.WebpsaveBuffer(webpOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	t.logger.Debug("Transformed image",
		zap.String("profile", p.Name),
		zap.Int("src_width", srcW),
		zap.Int("src_height", srcH),
		zap.Int("width", image.Width()),
		zap.Int("height", image.Height()),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}
