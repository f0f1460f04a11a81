package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aazar/breachscan/internal/logx"
	"github.com/aazar/breachscan/internal/lookup"
	"github.com/aazar/breachscan/internal/scan"
)

// consoleSentinel as the output destination means print to stdout.
const consoleSentinel = "print"

func main() {
	defaultRoot := "data.tmp"
	if env := os.Getenv("BREACHSCAN_DATA"); env != "" {
		defaultRoot = env
	}

	var (
		keyword  = flag.String("k", "", "Primary keyword to search for")
		keyword2 = flag.String("s", "", "Secondary keyword (AND-combined with -k)")
		output   = flag.String("o", consoleSentinel, "Output file, or 'print' for console")
		dataDir  = flag.String("d", defaultRoot, "Corpus root directory")
		workers  = flag.Int("workers", 0, "Worker pool size (0 = auto)")
		verbose  = flag.Bool("v", false, "Log skipped shards")
	)
	flag.Parse()
	email := flag.Arg(0)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := logx.NewLogger()

	if info, err := os.Stat(*dataDir); err != nil || !info.IsDir() {
		logger.Fatal().Str("dir", *dataDir).Msg("could not find a corpus directory")
	}
	if email == "" && *keyword == "" {
		fmt.Fprintln(os.Stderr, "Usage: breachscan -k <keyword> [-s <keyword>] [-o <file>] [-d <dir>] [email]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Direct-key lookup short-circuits the scan entirely.
	if email != "" {
		lines, err := lookup.Find(*dataDir, email)
		if err != nil {
			logger.Fatal().Err(err).Str("email", email).Msg("lookup failed")
		}
		if err := writeLines(*output, lines, logger); err != nil {
			logger.Fatal().Err(err).Msg("write results")
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, console, err := openOutput(*output)
	if err != nil {
		logger.Fatal().Err(err).Str("output", *output).Msg("open output")
	}
	if console {
		fmt.Println("\nResults:")
	}

	sink := scan.NewSink(w)
	scanner := scan.New(scan.Config{
		Root:    *dataDir,
		Workers: *workers,
		Logger:  logger,
	}, scan.NewQuery(*keyword, *keyword2), sink)

	runErr := scanner.Run(ctx)
	if err := sink.Close(); err != nil {
		logger.Fatal().Err(err).Msg("write results")
	}
	if err := closeOutput(w, console); err != nil {
		logger.Fatal().Err(err).Msg("close output")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("scan failed")
	}
	if !console {
		logger.Info().Str("file", *output).Msg("results written")
	}
}

// openOutput returns the result writer and whether it is the console.
func openOutput(dest string) (io.Writer, bool, error) {
	if dest == consoleSentinel {
		return os.Stdout, true, nil
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

func closeOutput(w io.Writer, console bool) error {
	if console {
		return nil
	}
	return w.(*os.File).Close()
}

// writeLines writes lookup results to the chosen destination.
func writeLines(dest string, lines []string, logger zerolog.Logger) error {
	w, console, err := openOutput(dest)
	if err != nil {
		return err
	}
	if console {
		fmt.Println("\nResults:")
	}
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := closeOutput(w, console); err != nil {
		return err
	}
	if !console {
		logger.Info().Str("file", dest).Int("lines", len(lines)).Msg("results written")
	}
	return nil
}
