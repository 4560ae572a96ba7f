package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screensnap/src/clipboard"
	"screensnap/src/config"
	"screensnap/src/delivery"
)

const (
	maxFileSizeMB = 50
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath    string
	jsonOutput  bool
	verbose     bool
	noClipboard bool
	saveDir     string
	format      string
	envFile     string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screensnap-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screensnap-cli",
		Short:         "Deliver an existing PNG like a capture: clipboard and file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, cmd.InOrStdin(), cmd.OutOrStdout(), nil)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().BoolVar(&opts.noClipboard, "no-clipboard", false, "Do not copy the image to the clipboard")
	cmd.Flags().StringVar(&opts.saveDir, "save", "", "Save a copy into this directory")
	cmd.Flags().StringVar(&opts.format, "format", "", "Saved image format: png or jpeg (default from config)")
	cmd.Flags().StringVar(&opts.envFile, "env", "", "Path to a .env file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runWithOptions reads the image and runs the delivery steps. clip overrides
// the system clipboard.
func runWithOptions(opts cliOptions, stdin io.Reader, stdout io.Writer, clip delivery.ClipboardWriter) error {
	// Configure logging BEFORE any other operations.
	if opts.verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		fmt.Fprintf(os.Stderr, "[verbose] Starting screensnap-cli\n")
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvFile: opts.envFile})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	format := cfg.ImageFormat
	if opts.format != "" {
		switch strings.ToLower(opts.format) {
		case "png", "jpg", "jpeg":
		default:
			return fmt.Errorf("unsupported format %q: want png or jpeg", opts.format)
		}
		format = delivery.NormalizeFormat(opts.format)
	}

	if opts.noClipboard && opts.saveDir == "" {
		return fmt.Errorf("nothing to do: --no-clipboard without --save")
	}
	if !opts.noClipboard && clip == nil {
		if err := clipboard.Init(); err != nil {
			return fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		clip = clipboard.System{}
	}

	data, err := readInput(opts.filePath, stdin, opts.verbose)
	if err != nil {
		return err
	}
	img, err := decodePNG(data)
	if err != nil {
		return err
	}
	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Decoded %dx%d image\n", img.Bounds().Dx(), img.Bounds().Dy())
	}

	pipeline := &delivery.Pipeline{Clipboard: clip}
	start := time.Now()
	out := pipeline.Deliver(img, delivery.Options{
		CopyToClipboard: !opts.noClipboard,
		SaveToFile:      opts.saveDir != "",
		SaveDir:         opts.saveDir,
		Format:          format,
	})
	elapsed := time.Since(start)

	if err := outputResult(stdout, out, opts.filePath, img.Bounds().Size(), elapsed, opts.jsonOutput); err != nil {
		return err
	}
	if failed := out.Failures(); len(failed) > 0 {
		return fmt.Errorf("delivery failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "save", "format", "env", "no-clipboard"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

func readInput(filePath string, stdin io.Reader, verbose bool) ([]byte, error) {
	var data []byte
	var err error
	if filePath == "-" {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading image from stdin\n")
		}
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading image from file: %s\n", filePath)
		}
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func decodePNG(data []byte) (image.Image, error) {
	if err := validatePNG(data); err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	return img, nil
}

type DeliveryResult struct {
	Source    string  `json:"source"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Clipboard string  `json:"clipboard"`
	File      string  `json:"file"`
	Path      string  `json:"path,omitempty"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
}

func outputResult(w io.Writer, out delivery.Outcome, sourcePath string, size image.Point, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		result := DeliveryResult{
			Source:    sourcePath,
			Width:     size.X,
			Height:    size.Y,
			Clipboard: out.Clipboard.String(),
			File:      out.File.String(),
			Path:      out.Path,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Duration:  elapsed.Seconds(),
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	if out.Path != "" {
		fmt.Fprintln(w, out.Path)
	}
	if out.Clipboard.Status == delivery.OK {
		fmt.Fprintln(w, "copied to clipboard")
	}
	return nil
}
