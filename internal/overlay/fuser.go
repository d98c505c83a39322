package overlay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/overlay/interfaces"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
)

var ErrFuserUnavailable = errors.New("overlay fuser unavailable")

const overlayFilter = "[1:v][0:v]scale=w=rw:h=rh,format=rgba[ovr];[0:v][ovr]overlay=0:0:format=auto[vout]"

type FFmpegFuser struct {
	binary string
	logger providers.Logger
}

// NewFFmpegFuser resolves the ffmpeg binary once. A disabled or missing
// binary yields a fuser whose Available reports false.
func NewFFmpegFuser(conf *structures.Config, logger providers.Logger) interfaces.FuserInterface {
	if !conf.Fusion.Enabled {
		logger.Infof(providers.TypeOverlay, "Overlay fusion disabled by configuration")
		return &FFmpegFuser{logger: logger}
	}
	binary, err := exec.LookPath(conf.Fusion.FFmpegPath)
	if err != nil {
		logger.Warnf(providers.TypeOverlay, "ffmpeg not found (%s), overlays will not be fused", conf.Fusion.FFmpegPath)
		return &FFmpegFuser{logger: logger}
	}
	return &FFmpegFuser{binary: binary, logger: logger}
}

func (f *FFmpegFuser) Available() bool {
	return f.binary != ""
}

func (f *FFmpegFuser) Fuse(ctx context.Context, base, overlay, output string) error {
	if !f.Available() {
		return ErrFuserUnavailable
	}

	cmd := exec.CommandContext(ctx, f.binary, fuseArgs(base, overlay, output)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(output)
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s: %w", base, ctx.Err())
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", base, err, tail(out, 512))
	}

	info, err := os.Stat(base)
	if err != nil {
		return err
	}
	return os.Chtimes(output, info.ModTime(), info.ModTime())
}

func fuseArgs(base, overlay, output string) []string {
	args := []string{
		"-y",
		"-i", base,
		"-i", overlay,
		"-filter_complex", overlayFilter,
		"-map", "[vout]",
	}
	if media.IsImage(base) {
		return append(args, "-frames:v", "1", output)
	}
	return append(args,
		"-map", "0:a?",
		"-map_metadata", "0",
		"-movflags", "+faststart",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "copy",
		output,
	)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
