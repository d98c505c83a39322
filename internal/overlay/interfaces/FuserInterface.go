package interfaces

import "context"

// FuserInterface composites an overlay onto a base media file.
type FuserInterface interface {
	Available() bool
	Fuse(ctx context.Context, base, overlay, output string) error
}
