package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/server"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List the movies whose subtitles best match a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := ctx.withLogger(cmd.Context())
			searcher, vs, err := ctx.newSearcher(runCtx)
			if err != nil {
				return err
			}
			defer vs.Close()

			matches, err := searcher.Search(runCtx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			printMatches(cmd.OutOrStdout(), matches)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of matches (default from config)")
	return cmd
}

func printMatches(out io.Writer, matches []models.MovieMatch) {
	if len(matches) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No matching movies found.")
		return
	}
	for i, m := range matches {
		fmt.Fprintf(out, "%d. %s (distance %.4f)\n", i+1, m.Label, m.Score)
	}
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	var sessionName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask about movies interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := ctx.withLogger(cmd.Context())
			cfg := ctx.config

			searcher, vs, err := ctx.newSearcher(runCtx)
			if err != nil {
				return err
			}
			defer vs.Close()
			chat, err := ctx.newChatEngine(runCtx)
			if err != nil {
				return err
			}
			hist, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			session, created, err := hist.GetOrCreateSession(runCtx, sessionName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if created {
				color.New(color.FgCyan).Fprintf(out, "\nStarted session %q", session.Name)
			} else {
				color.New(color.FgCyan).Fprintf(out, "\nResumed session %q", session.Name)
			}
			color.New(color.FgCyan).Fprintln(out, " (type 'exit' to quit)")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			userPrompt := color.New(color.FgGreen).FprintfFunc()
			assistantPrompt := color.New(color.FgCyan).FprintfFunc()
			errorPrompt := color.New(color.FgRed).FprintfFunc()

			for {
				userPrompt(out, "\nYou: ")
				if !scanner.Scan() {
					break
				}

				query := strings.TrimSpace(scanner.Text())
				if strings.ToLower(query) == "exit" {
					break
				}
				if query == "" {
					continue
				}

				matches, err := searcher.Search(runCtx, query, cfg.Store.TopK)
				if err != nil {
					errorPrompt(out, "Error searching: %v\n", err)
					continue
				}
				turns, err := hist.Load(runCtx, session.ID, cfg.LLM.MaxHistoryTurns)
				if err != nil {
					return err
				}

				answer, err := chat.Chat(runCtx, query, matches, turns)
				if err != nil {
					errorPrompt(out, "Error: %v\n", err)
					continue
				}
				assistantPrompt(out, "\nAssistant: ")
				fmt.Fprintln(out, answer)

				if err := hist.Save(runCtx, models.ChatTurn{
					SessionID: session.ID,
					Query:     query,
					Response:  answer,
					CreatedAt: time.Now(),
				}); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&sessionName, "session", "s", "default", "Chat session name")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search and chat over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := ctx.withLogger(cmd.Context())
			cfg := ctx.config
			if addr == "" {
				addr = cfg.Server.Addr
			}

			searcher, vs, err := ctx.newSearcher(runCtx)
			if err != nil {
				return err
			}
			defer vs.Close()
			chat, err := ctx.newChatEngine(runCtx)
			if err != nil {
				return err
			}
			hist, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			srv := server.New(server.Config{
				Addr:          addr,
				TopK:          cfg.Store.TopK,
				HistoryTurns:  cfg.LLM.MaxHistoryTurns,
				RecordingsDir: cfg.Voice.RecordingsDir,
				ReadTimeout:   cfg.Server.ReadTimeout,
				WriteTimeout:  cfg.Server.WriteTimeout,
			}, searcher, chat, hist, ctx.newTranscriber(), ctx.logger)
			return srv.Run(runCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var doSearch bool

	cmd := &cobra.Command{
		Use:   "transcribe <recording.wav>",
		Short: "Transcribe a spoken question with Whisper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := ctx.withLogger(cmd.Context())
			out := cmd.OutOrStdout()

			spinner := getSpinner(cmd.ErrOrStderr(), " Transcribing")
			text, err := ctx.newTranscriber().Transcribe(runCtx, args[0])
			spinner.Finish()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)

			if !doSearch {
				return nil
			}
			searcher, vs, err := ctx.newSearcher(runCtx)
			if err != nil {
				return err
			}
			defer vs.Close()
			matches, err := searcher.Search(runCtx, text, 0)
			if err != nil {
				return err
			}
			printMatches(out, matches)
			return nil
		},
	}

	cmd.Flags().BoolVar(&doSearch, "search", false, "Search with the transcript")
	return cmd
}
