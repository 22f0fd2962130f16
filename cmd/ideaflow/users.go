package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ideaflow/internal/app"
	"ideaflow/internal/engine/auth"
)

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Accounts and sessions"}
	u.AddCommand(userSignUpCmd())
	u.AddCommand(userSignInCmd())
	u.AddCommand(userShowCmd())
	u.AddCommand(userProfileCmd())
	u.AddCommand(userAvatarCmd())
	return u
}

func userSignUpCmd() *cobra.Command {
	var req auth.SignUpRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				svc, err := ws.Auth()
				if err != nil {
					return err
				}
				u, err := svc.SignUp(ctx, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (at least 8 characters)")
	cmd.Flags().StringVar(&req.Nome, "nome", "", "display name")
	cmd.Flags().StringVar(&req.AvatarURL, "avatar-url", "", "avatar URL")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("nome")
	return cmd
}

func userSignInCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print an access token",
		Long:  "Sign in and print an access token. With session_store=memory the session only lives as long as this process; use redis to share it with 'ideaflow serve'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				svc, err := ws.Auth()
				if err != nil {
					return err
				}
				appCtx := app.NewContext(ws.Engine, svc)
				defer appCtx.Close()
				sess, err := svc.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sess)
				}
				fmt.Println(sess.Token)
				fmt.Fprintf(os.Stderr, "signed in as %s, %d ideas visible\n", sess.User.Email, len(appCtx.Ideas()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email>",
		Short: "Show a user by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				u, err := ws.Engine.Repo.GetUserByEmail(ctx, nil, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func userProfileCmd() *cobra.Command {
	var nome, avatar string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the actor's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				svc, err := ws.Auth()
				if err != nil {
					return err
				}
				u, err := svc.UpdateProfile(ctx, actor, nome, avatar)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&nome, "nome", "", "display name")
	cmd.Flags().StringVar(&avatar, "avatar-url", "", "avatar URL")
	_ = cmd.MarkFlagRequired("nome")
	return cmd
}

func userAvatarCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "avatar <file>",
		Short: "Upload the actor's avatar image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				svc, err := ws.Auth()
				if err != nil {
					return err
				}
				f, err := os.Open(args[0])
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
					ct = mime.TypeByExtension(filepath.Ext(args[0]))
				}
				u, err := svc.UploadAvatar(ctx, actor, filepath.Base(args[0]), ct, info.Size(), f)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type (guessed from the extension when empty)")
	return cmd
}
