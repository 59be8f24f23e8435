package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/ZacxDev/clip-assembler/pkg/videoprocessor"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "clip-assembler",
		Short: "Turn a long video into short narrated vertical clips",
		Long: `clip-assembler cuts a long-form video into short narrated clips for vertical platforms.
It derives a cut plan from the video's subtitles, voices each segment, reframes it to 9:16,
optionally mixes background music, joins everything into one deliverable and exports every
clip on its own.

Examples:
  # Process the first video in ./movies
  clip-assembler run

  # Only generate (or show the cached) cut plan
  clip-assembler plan

  # Crop one clip for Instagram Reels
  clip-assembler export -i clip.mp4 -o reel.mp4 --platform instagram_reel`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline on the first source video",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAssembler(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Run(cmd.Context())
			if res != nil {
				printSummary(res)
			}
			return err
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Load or generate the cut plan and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAssembler(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Plan(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Crop a single clip to a 9:16 canvas",
		Long: fmt.Sprintf(`Crop a single clip to the largest centered 9:16 region and scale it to 720x1280.

Supported platforms:
%s
Example:
  clip-assembler export -i clip.mp4 -o vertical.mp4 --platform youtube_shorts`,
			formatSupportedPlatforms()),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			outputPath, _ := cmd.Flags().GetString("output")
			if inputPath == "" || outputPath == "" {
				return fmt.Errorf("input and output paths are required")
			}

			a, err := newAssembler(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if md, err := a.GetVideoMetadata(inputPath); err == nil {
				a.Logger().Debugf("Input: %dx%d, %.2fs, %s", md.Width, md.Height, md.Duration, md.Codec)
			}
			if err := a.ExportVertical(inputPath, outputPath); err != nil {
				return err
			}
			fmt.Println(outputPath)
			return nil
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show segment status recorded by the latest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAssembler(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			run, segs, err := a.Status(cmd.Context())
			if err != nil {
				return err
			}
			if run == nil {
				fmt.Println("No runs recorded yet.")
				return nil
			}
			outcome := run.Outcome
			if outcome == "" {
				outcome = "in progress"
			}
			fmt.Printf("Run %s on %s (started %s, %s)\n\n", run.ID, run.Source, run.StartedAt, outcome)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEGMENT\tSTATUS\tCLIP\tERROR")
			for _, s := range segs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Index, s.Status, s.ClipPath, s.Error)
			}
			return w.Flush()
		},
	}

	platformsCmd = &cobra.Command{
		Use:   "platforms",
		Short: "List supported export platforms",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(formatSupportedPlatforms())
		},
	}
)

func newAssembler(cmd *cobra.Command) (*videoprocessor.Assembler, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")

	opts, err := videoprocessor.LoadOptions(configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("work-dir") {
		opts.WorkDir, _ = flags.GetString("work-dir")
	}
	if flags.Changed("platform") {
		opts.Platform, _ = flags.GetString("platform")
	}
	if flags.Changed("provider") {
		provider, _ := flags.GetString("provider")
		opts.SetProvider(provider)
	}
	if v, _ := flags.GetBool("verbose"); v {
		opts.Verbose = true
	}
	if v, _ := flags.GetBool("no-music"); v {
		opts.Music.Disabled = true
	}
	if v, _ := flags.GetBool("keep-source"); v {
		opts.KeepSource = true
	}

	return videoprocessor.New(opts)
}

func formatSupportedPlatforms() string {
	var sb strings.Builder
	for _, platform := range videoprocessor.GetSupportedPlatforms() {
		sb.WriteString(fmt.Sprintf("- %s\n", platform))
	}
	return sb.String()
}

func printSummary(res *videoprocessor.Result) {
	for _, seg := range res.Segments {
		if seg.Err != nil {
			fmt.Printf("Clip %d: %s (%v)\n", seg.Index, seg.Status, seg.Err)
			continue
		}
		fmt.Printf("Clip %d: %s\n", seg.Index, seg.Status)
	}
	if res.Deliverable != "" {
		fmt.Printf("Deliverable: %s\n", res.Deliverable)
		fmt.Printf("Exports: %d of %d clips\n", len(res.Exports), len(res.Clips))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Config file (default clip-assembler.yaml if present)")
	pf.String("work-dir", ".", "Working directory holding movies/, clips/, output/ and friends")
	pf.StringP("platform", "t", "tiktok",
		fmt.Sprintf("Export platform (%s)", strings.Join(videoprocessor.GetSupportedPlatforms(), ", ")))
	pf.String("provider", "gemini", "Plan generator (gemini or openai)")
	pf.BoolP("verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().Bool("no-music", false, "Skip background music mixing")
	runCmd.Flags().Bool("keep-source", false, "Do not archive the source or clear clips after a successful run")

	exportCmd.Flags().StringP("input", "i", "", "Input clip")
	exportCmd.Flags().StringP("output", "o", "", "Output path")
	exportCmd.MarkFlagRequired("input")
	exportCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(runCmd, planCmd, exportCmd, statusCmd, platformsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
