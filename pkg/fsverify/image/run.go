package image

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// OpenFunc returns the source of tool output for an image.
type OpenFunc func(ctx context.Context, desc Descriptor) (Source, error)

// OpenCaptures reads each image from its capture directory.
func OpenCaptures(_ context.Context, desc Descriptor) (Source, error) {
	return DirSource{Dir: desc.Captures}, nil
}

// RunConfig configures a matrix run.
type RunConfig struct {
	// Workers is the number of images validated at once. Values below 1
	// validate one image at a time.
	Workers int

	// Open returns the source for an image. Nil uses OpenCaptures.
	Open OpenFunc

	// OnDone is called after each image, from the goroutine that
	// validated it.
	OnDone func(*Outcome)
}

// Run validates every image of the matrix and returns the outcomes in
// matrix order. A failing image does not stop the run; only cancellation
// of ctx does, in which case the outcomes gathered so far are returned
// with the context error.
func Run(ctx context.Context, m Matrix, cfg RunConfig, opts ...Option) ([]*Outcome, error) {
	open := cfg.Open
	if open == nil {
		open = OpenCaptures
	}

	outcomes := make([]*Outcome, len(m.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))

	for i, desc := range m.Images {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome := runOne(gctx, desc, open, opts)
			outcomes[i] = outcome
			if cfg.OnDone != nil {
				cfg.OnDone(outcome)
			}
			return nil
		})
	}
	_ = g.Wait()

	done := outcomes[:0]
	for _, o := range outcomes {
		if o != nil {
			done = append(done, o)
		}
	}
	logger.Info("matrix finished", "images", len(m.Images), "validated", len(done))
	return done, ctx.Err()
}

func runOne(ctx context.Context, desc Descriptor, open OpenFunc, opts []Option) *Outcome {
	src, err := open(ctx, desc)
	if err != nil {
		outcome := &Outcome{Descriptor: desc, Started: time.Now(), Err: fmt.Errorf("%s: %w", desc.Name, err)}
		logger.Error("opening image source failed", "image", desc.Name, "error", err)
		return outcome
	}
	outcome, _ := Validate(ctx, desc, src, opts...)
	return outcome
}
