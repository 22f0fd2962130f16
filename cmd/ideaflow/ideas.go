package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ideaflow/internal/app"
	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/repo"
)

func ideaCmd() *cobra.Command {
	idea := &cobra.Command{Use: "idea", Short: "Manage ideas"}
	idea.AddCommand(ideaCreateCmd())
	idea.AddCommand(ideaListCmd())
	idea.AddCommand(ideaShowCmd())
	idea.AddCommand(ideaStatusCmd())
	idea.AddCommand(ideaOwnCmd())
	idea.AddCommand(ideaNextCmd())
	return idea
}

func ideaCreateCmd() *cobra.Command {
	var opts engine.CreateIdeaOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit an idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				opts.ActorID = actor
				idea, err := ws.Engine.CreateIdea(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(idea)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Titulo, "titulo", "", "title")
	cmd.Flags().StringVar(&opts.Descricao, "descricao", "", "description")
	cmd.Flags().StringVar(&opts.Fonte, "fonte", "", "source")
	cmd.Flags().StringVar(&opts.Segmento, "segmento", "", "segment")
	cmd.Flags().StringVar(&opts.Impacto, "impacto", "", "expected impact")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("titulo")
	_ = cmd.MarkFlagRequired("descricao")
	return cmd
}

func ideaListCmd() *cobra.Command {
	var f repo.IdeaFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				ideas, err := ws.Engine.ListIdeas(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ideas)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Título", "Status", "Autor", "Owner", "Votos", "Comentários", "Tags"})
				for _, i := range ideas {
					owner := ""
					if i.OwnerID != nil {
						owner = *i.OwnerID
					}
					tw.AppendRow(table.Row{i.ID, text.Trim(i.Titulo, 40), i.Status, i.AutorID, owner, i.Votos, i.Comentarios, strings.Join(i.Tags, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AutorID, "autor-id", "", "author filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner-id", "", "owner filter")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag filter")
	cmd.Flags().StringVar(&f.Search, "search", "", "text search in title and description")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum ideas")
	return cmd
}

func ideaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				idea, err := ws.Engine.GetIdea(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(idea)
			})
		},
	}
}

func ideaStatusCmd() *cobra.Command {
	var justificativa string
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change an idea's status (owner or author only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				idea, err := ws.Engine.TransitionIdea(ctx, engine.TransitionOptions{
					IdeaID:        args[0],
					Target:        domain.Status(args[1]),
					ActorID:       actor,
					Justificativa: justificativa,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(idea)
			})
		},
	}
	cmd.Flags().StringVar(&justificativa, "justificativa", "", "justification, kept when archiving")
	return cmd
}

func ideaOwnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "own <id>",
		Short: "Become the owner of an unowned idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				idea, err := ws.Engine.AssumeOwnership(ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(idea)
			})
		},
	}
}

func ideaNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next <id>",
		Short: "Statuses the idea can move to directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				idea, err := ws.Engine.GetIdea(ctx, args[0])
				if err != nil {
					return err
				}
				next := engine.NextStatuses(idea.Status)
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"status":               idea.Status,
						"next_statuses":        next,
						"can_assume_ownership": engine.CanAssumeOwnership(idea),
					})
				}
				fmt.Printf("current: %s\n", idea.Status)
				if len(next) == 0 {
					fmt.Println("no direct transitions")
				}
				for _, s := range next {
					fmt.Printf("  -> %s\n", s)
				}
				if idea.Status == domain.StatusProntaParaAvaliacao {
					fmt.Println("record an evaluation to approve or archive")
				}
				return nil
			})
		},
	}
}

func voteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <idea-id>",
		Short: "Toggle the actor's vote on an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				voted, err := ws.Engine.ToggleVote(ctx, args[0], actor)
				if err != nil {
					return err
				}
				idea, err := ws.Engine.GetIdea(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"idea_id": idea.ID, "voted": voted, "votos": idea.Votos})
				}
				state := "removed"
				if voted {
					state = "added"
				}
				fmt.Printf("vote %s (%d total)\n", state, idea.Votos)
				return nil
			})
		},
	}
}

func commentCmd() *cobra.Command {
	c := &cobra.Command{Use: "comment", Short: "Comments on ideas"}
	c.AddCommand(&cobra.Command{
		Use:   "add <idea-id> <text>",
		Short: "Comment on an idea",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				comment, err := ws.Engine.AddComment(ctx, args[0], actor, args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(comment)
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "list <idea-id>",
		Short: "List comments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.ListComments(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Autor", "Quando", "Comentário"})
				for _, cm := range items {
					author := cm.AutorNome
					if author == "" {
						author = cm.AutorID
					}
					tw.AppendRow(table.Row{cm.ID, author, cm.CreatedAt, text.Trim(cm.Conteudo, 60)})
				}
				tw.Render()
				return nil
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete one of the actor's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				if err := ws.Engine.DeleteComment(ctx, args[0], actor); err != nil {
					return err
				}
				fmt.Println("comment deleted")
				return nil
			})
		},
	})
	return c
}

func evaluateCmd() *cobra.Command {
	var in engine.EvaluationInput
	var decisao string
	cmd := &cobra.Command{
		Use:   "evaluate <idea-id>",
		Short: "Record an evaluation for an idea ready for evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				in.IdeaID = args[0]
				in.ActorID = actor
				in.Decisao = domain.Status(decisao)
				ev, err := ws.Engine.RecordEvaluation(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().IntVar(&in.NotaClarezaObjetivos, "clareza", 0, "clarity of objectives score (1-5)")
	cmd.Flags().IntVar(&in.NotaAnaliseNegocio, "negocio", 0, "business analysis score (1-5)")
	cmd.Flags().IntVar(&in.NotaViabilidadeTecnica, "viabilidade", 0, "technical feasibility score (1-5)")
	cmd.Flags().StringVar(&decisao, "decisao", "", "Aprovada or Arquivada")
	cmd.Flags().StringVar(&in.Justificativa, "justificativa", "", "justification (required to archive)")
	_ = cmd.MarkFlagRequired("decisao")

	cmd.AddCommand(&cobra.Command{
		Use:   "list <idea-id>",
		Short: "List an idea's evaluations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.ListEvaluations(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Avaliador", "Clareza", "Negócio", "Viabilidade", "Decisão", "Justificativa"})
				for _, ev := range items {
					just := ""
					if ev.Justificativa != nil {
						just = *ev.Justificativa
					}
					tw.AppendRow(table.Row{ev.ID, ev.AvaliadorID, ev.NotaClarezaObjetivos, ev.NotaAnaliseNegocio, ev.NotaViabilidadeTecnica, ev.Decisao, just})
				}
				tw.Render()
				return nil
			})
		},
	})
	return cmd
}

func definitionCmd() *cobra.Command {
	def := &cobra.Command{Use: "definition", Short: "Idea definition document"}
	def.AddCommand(&cobra.Command{
		Use:   "show <idea-id>",
		Short: "Show the definition and its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				d, err := ws.Engine.GetDefinition(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})

	var doc domain.Definition
	save := &cobra.Command{
		Use:   "save <idea-id>",
		Short: "Save the definition; progress is recomputed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				saved, err := ws.Engine.SaveDefinition(ctx, args[0], doc, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(saved)
				}
				fmt.Printf("definition saved, %d%% complete\n", saved.ProgressoPercentual)
				return nil
			})
		},
	}
	save.Flags().StringVar(&doc.AlinhamentoEstrategico, "alinhamento", "", "strategic alignment")
	save.Flags().StringVar(&doc.PublicoAlvo, "publico-alvo", "", "target audience")
	save.Flags().StringVar(&doc.Mercado, "mercado", "", "market")
	save.Flags().StringVar(&doc.HipotesesValor, "hipoteses", "", "value hypotheses")
	save.Flags().StringVar(&doc.EstimativaRentabilidade, "rentabilidade", "", "profitability estimate")
	save.Flags().BoolVar(&doc.CapacidadeTecnica, "capacidade-tecnica", false, "technical capacity available")
	save.Flags().BoolVar(&doc.CapacidadeOperacional, "capacidade-operacional", false, "operational capacity available")
	save.Flags().BoolVar(&doc.CapacidadeRecursos, "capacidade-recursos", false, "resources available")
	def.AddCommand(save)
	return def
}

func checklistCmd() *cobra.Command {
	cl := &cobra.Command{Use: "checklist", Short: "Definition checklist"}
	cl.AddCommand(&cobra.Command{
		Use:   "list <idea-id>",
		Short: "List checklist items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.ListChecklist(ctx, args[0])
				if err != nil {
					return err
				}
				return printChecklist(items)
			})
		},
	})
	cl.AddCommand(&cobra.Command{
		Use:   "seed <idea-id>",
		Short: "Create the default checklist when the idea has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				items, err := ws.Engine.SeedChecklist(ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printChecklist(items)
			})
		},
	})
	cl.AddCommand(&cobra.Command{
		Use:   "add <idea-id> <categoria> <item>",
		Short: "Add a checklist item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				it, err := ws.Engine.AddChecklistItem(ctx, args[0], args[1], args[2], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	})
	for _, done := range []bool{true, false} {
		done := done
		use, short := "done <item-id>", "Mark an item done"
		if !done {
			use, short = "undone <item-id>", "Reopen an item"
		}
		cl.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
					actor, err := actorID(ctx, ws)
					if err != nil {
						return err
					}
					it, err := ws.Engine.SetChecklistItemDone(ctx, args[0], done, actor)
					if err != nil {
						return err
					}
					return printJSONOrTable(it)
				})
			},
		})
	}
	cl.AddCommand(&cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete a checklist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := actorID(ctx, ws)
				if err != nil {
					return err
				}
				if err := ws.Engine.DeleteChecklistItem(ctx, args[0], actor); err != nil {
					return err
				}
				fmt.Println("item deleted")
				return nil
			})
		},
	})
	return cl
}

func printChecklist(items []domain.ChecklistItem) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Categoria", "Item", "Concluído"})
	for _, it := range items {
		mark := " "
		if it.Concluido {
			mark = "x"
		}
		tw.AppendRow(table.Row{it.ID, it.Categoria, it.Item, "[" + mark + "]"})
	}
	tw.Render()
	return nil
}
