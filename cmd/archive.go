package main

import (
	"context"
	"path"
	"strings"

	"github.com/urfave/cli/v3"
)

// ArchiveList prints the snapshot keys stored in the bucket.
func (r *Runner) ArchiveList(ctx context.Context, cmd *cli.Command) error {
	arc, err := r.openArchive(ctx)
	if err != nil {
		return err
	}

	keys, err := arc.List(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(keys, true)
	}
	if len(keys) == 0 {
		return r.writePlain("No snapshots in s3://%s\n", r.config.S3.Bucket)
	}

	r.writePlainHeader("s3://" + r.config.S3.Bucket)
	for _, key := range keys {
		r.writePlain("%-36s  %s\n", strings.TrimSuffix(path.Base(key), ".json"), key)
	}
	return nil
}

// ArchiveCheck reports whether the configured bucket is reachable.
func (r *Runner) ArchiveCheck(ctx context.Context, cmd *cli.Command) error {
	arc, err := r.openArchive(ctx)
	if err != nil {
		return err
	}
	if err := arc.EnsureBucket(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Bucket %s is reachable\n", r.config.S3.Bucket)
}
