package cmd

import (
	"fmt"
	"time"

	"fieldparty/internal/snapshot"
	"fieldparty/pkg/domain"

	"github.com/spf13/cobra"
)

func (a *app) snapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Archive and restore stored sessions",
		Long: `Archive every stored party and route to the configured blob store
(blob.driver) and restore archives into the configured document store.`,
	}
	snapshotCmd.AddCommand(
		a.snapshotExportCmd(),
		a.snapshotImportCmd(),
		a.snapshotListCmd(),
	)
	return snapshotCmd
}

func (a *app) snapshotExportCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all sessions to a new archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			blobs, err := a.blobStore(ctx)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if key == "" {
				key = snapshot.DefaultKey(now)
			}
			info, archive, err := snapshot.Export(ctx, svc.Documents(), blobs, key, a.cfg.Storage.Codec, now)
			if err != nil {
				return err
			}
			a.logger.Info("snapshot exported", "key", info.Key, "documents", len(archive.Documents), "size_bytes", info.Size)
			cmd.Printf("Exported %d documents to %s (%d bytes)\n", len(archive.Documents), info.Key, info.Size)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "archive key (default snapshots/<timestamp>.json)")
	return cmd
}

func (a *app) snapshotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <key>",
		Short: "Restore an archive, skipping ids that already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			blobs, err := a.blobStore(ctx)
			if err != nil {
				return err
			}
			archive, err := snapshot.Load(ctx, blobs, args[0])
			if err != nil {
				return err
			}
			if archive.Codec != "" && archive.Codec != a.cfg.Storage.Codec {
				return domain.ValidationError{
					Field:   "storage.codec",
					Message: fmt.Sprintf("archive was written with %s, store uses %s", archive.Codec, a.cfg.Storage.Codec),
				}
			}
			res, err := snapshot.Import(ctx, svc.Documents(), blobs, args[0])
			if err != nil {
				return err
			}
			a.logger.Info("snapshot imported", "key", args[0], "restored", res.Restored, "skipped", res.Skipped)
			cmd.Printf("Restored %d documents, skipped %d existing\n", res.Restored, res.Skipped)
			return nil
		},
	}
}

func (a *app) snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := snapshot.List(cmd.Context(), blobs)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "KEY\tSIZE\tDOCUMENTS\tMODIFIED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Key, info.Size, info.Metadata["documents"], info.LastModified.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
