package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/subsearch/pkg/columnar"
	"github.com/xhad/subsearch/pkg/config"
	"github.com/xhad/subsearch/pkg/extractor"
	"github.com/xhad/subsearch/pkg/indexer"
	"github.com/xhad/subsearch/pkg/pipeline"
	"github.com/xhad/subsearch/pkg/processor"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var output string
	var startAfter int64

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Unpack zipped subtitles from the source table into a parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if output == "" {
				output = cfg.Extractor.Output
			}
			pager, closeDB, err := ctx.openPager()
			if err != nil {
				return err
			}
			defer closeDB()

			exCfg := ctx.extractorConfig()
			if cmd.Flags().Changed("start-after") {
				exCfg.StartAfter = startAfter
			}
			ex := extractor.NewWithConfig(pager, exCfg)

			out := cmd.ErrOrStderr()
			bar := getSpinner(out, " Extracting subtitles")
			ex.OnProgress = func(p extractor.Progress) {
				bar.Add(p.Rows)
				bar.Describe(color.BlueString("Extracting subtitles (up to num %d)", p.LastNum))
			}

			res, err := ex.Run(ctx.withLogger(cmd.Context()), output)
			bar.Finish()
			if err != nil {
				return err
			}
			if res.Rows == 0 {
				color.New(color.FgYellow).Fprintf(out, "\nNo rows found in %s\n", cfg.Source.Table)
				return nil
			}
			color.New(color.FgGreen).Fprintf(out, "\n✓ Extracted %d rows in %d batches to %s (last num %d)\n",
				res.Rows, res.Batches, res.Output, res.LastNum)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Parquet file to write")
	cmd.Flags().Int64Var(&startAfter, "start-after", 0, "Resume after this num")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize extracted subtitle text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if input == "" {
				input = cfg.Cleaner.Input
			}
			if output == "" {
				output = cfg.Cleaner.Output
			}

			proc, err := processor.NewWithConfig(ctx.processorConfig())
			if err != nil {
				return err
			}

			total, err := countRows(input)
			if err != nil {
				return err
			}
			out := cmd.ErrOrStderr()
			bar := getProgressBar(out, int(total), " Cleaning subtitles")
			proc.OnProgress = func(p processor.Progress) {
				bar.Add(p.Rows)
			}

			res, err := proc.ProcessFile(ctx.withLogger(cmd.Context()), input, output)
			bar.Finish()
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "\n✓ Cleaned %d rows in %d batches to %s\n", res.Rows, res.Batches, res.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Extracted parquet file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Parquet file to write")
	return cmd
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var input string
	var reset bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed cleaned subtitles and upsert them into the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = ctx.config.Indexer.Input
			}
			runCtx := ctx.withLogger(cmd.Context())

			emb, err := ctx.newEmbedder(runCtx)
			if err != nil {
				return err
			}
			vs, err := ctx.openStore(runCtx)
			if err != nil {
				return err
			}
			defer vs.Close()

			ix := indexer.NewWithConfig(emb, vs, ctx.indexerConfig(reset))
			out := cmd.ErrOrStderr()
			var bar *progressbar.ProgressBar
			ix.OnProgress = func(p indexer.Progress) {
				if bar == nil {
					bar = getProgressBar(out, p.Batches, " Indexing batches")
				}
				bar.Add(1)
			}

			res, err := ix.Run(runCtx, input)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "\n✓ Indexed %d rows in %d batches (%d embedded)\n", res.Rows, res.Batches, res.Embedded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Cleaned parquet file")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop the vector table before indexing")
	return cmd
}

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run extract, clean and index in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			runCtx := ctx.withLogger(cmd.Context())

			pager, closeDB, err := ctx.openPager()
			if err != nil {
				return err
			}
			defer closeDB()
			emb, err := ctx.newEmbedder(runCtx)
			if err != nil {
				return err
			}
			vs, err := ctx.openStore(runCtx)
			if err != nil {
				return err
			}
			defer vs.Close()

			p, err := pipeline.NewWithConfig(pager, emb, vs, pipeline.PipelineConfig{
				ExtractOutput: cfg.Extractor.Output,
				CleanOutput:   cfg.Cleaner.Output,
				Extractor:     ctx.extractorConfig(),
				Processor:     ctx.processorConfig(),
				Indexer:       ctx.indexerConfig(reset),
			})
			if err != nil {
				return err
			}

			out := cmd.ErrOrStderr()
			color.New(color.FgBlue).Fprintln(out, pipelineBanner(cfg))
			p.Hooks = pipeline.Hooks{
				OnExtract: func(pr extractor.Progress) {
					fmt.Fprintf(out, "  extract batch %d: %d rows (nums %d..%d)\n", pr.Batch, pr.Rows, pr.FirstNum, pr.LastNum)
				},
				OnClean: func(pr processor.Progress) {
					fmt.Fprintf(out, "  clean batch %d: %d rows\n", pr.Batch, pr.Rows)
				},
				OnIndex: func(pr indexer.Progress) {
					fmt.Fprintf(out, "  index batch %d/%d: rows %d..%d\n", pr.Batch, pr.Batches, pr.Span.Start, pr.Span.End)
				},
			}

			res, err := p.Run(runCtx)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "✓ Pipeline done in %s: %d extracted, %d cleaned, %d indexed\n",
				res.Duration.Round(time.Millisecond), res.Extract.Rows, res.Clean.Rows, res.Index.Rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Drop the vector table before indexing")
	return cmd
}

// pipelineBanner names the source without its DSN, which may carry credentials.
func pipelineBanner(cfg *config.Config) string {
	return fmt.Sprintf("Starting pipeline for %s table %s", cfg.Source.Driver, cfg.Source.Table)
}

func countRows(path string) (int64, error) {
	r, err := columnar.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.NumRows(), nil
}
