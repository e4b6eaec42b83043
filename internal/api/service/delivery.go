package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirDelivery saves artifacts into a directory on the host.
type DirDelivery struct {
	Dir string
}

func (slf DirDelivery) Deliver(_ context.Context, a Artifact) error {
	if err := os.MkdirAll(slf.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(slf.Dir, filepath.Base(a.Filename))
	if err := os.WriteFile(path, a.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type DeliveryFunc func(ctx context.Context, a Artifact) error

func (slf DeliveryFunc) Deliver(ctx context.Context, a Artifact) error { return slf(ctx, a) }
