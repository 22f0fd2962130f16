package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ideaflow/internal/app"
	"ideaflow/internal/engine"
)

func attachmentCmd() *cobra.Command {
	a := &cobra.Command{Use: "attachment", Short: "Files attached to ideas"}
	a.AddCommand(attachmentUploadCmd())
	a.AddCommand(attachmentListCmd())
	a.AddCommand(attachmentDownloadCmd())
	a.AddCommand(attachmentURLCmd())
	a.AddCommand(attachmentDeleteCmd())
	a.AddCommand(attachmentReconcileCmd())
	return a
}

func attachmentUploadCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <idea-id> <file>",
		Short: "Attach a file to an idea",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				info, err := f.Stat()
				if err != nil {
					return err
				}
				ct := contentType
				if ct == "" {
					ct = mime.TypeByExtension(filepath.Ext(args[1]))
				}
				att, err := ws.Engine.UploadAttachment(ctx, engine.UploadInput{
					IdeaID:      args[0],
					FileName:    filepath.Base(args[1]),
					ContentType: ct,
					Size:        info.Size(),
					Body:        f,
					UploaderID:  actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(att)
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type (guessed from the extension when empty)")
	return cmd
}

func attachmentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <idea-id>",
		Short: "List an idea's attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.ListAttachments(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Arquivo", "Tipo", "Bytes", "Enviado por", "Caminho"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.NomeArquivo, a.TipoMime, a.TamanhoBytes, a.UploadedBy, a.StoragePath})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func attachmentDownloadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <attachment-id>",
		Short: "Write an attachment to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				a, rc, err := ws.Engine.OpenAttachment(ctx, args[0])
				if err != nil {
					return err
				}
				defer rc.Close()
				target := out
				if target == "" {
					target = a.NomeArquivo
				}
				f, err := os.Create(target)
				if err != nil {
					return err
				}
				n, err := io.Copy(f, rc)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
				fmt.Printf("wrote %d bytes to %s\n", n, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (defaults to the original file name)")
	return cmd
}

func attachmentURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <attachment-id>",
		Short: "Print an attachment's public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				u, err := ws.Engine.AttachmentURL(ctx, args[0])
				if err != nil {
					return err
				}
				if u == "" {
					return fmt.Errorf("storage driver %q has no public URL configured", ws.Config.Storage.Driver)
				}
				fmt.Println(u)
				return nil
			})
		},
	}
}

func attachmentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <attachment-id>",
		Short: "Delete an attachment and its stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				if err := ws.Engine.DeleteAttachment(ctx, args[0], actor); err != nil {
					return err
				}
				fmt.Println("attachment deleted")
				return nil
			})
		},
	}
}

func attachmentReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove attachment rows without files and files without rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor := viper.GetString("actor")
				if actor == "" {
					actor = "system"
				}
				report, err := ws.Engine.ReconcileAttachments(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("removed %d orphan rows, %d orphan objects\n", len(report.RemovedRows), len(report.RemovedObjects))
				return nil
			})
		},
	}
}
