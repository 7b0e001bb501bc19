package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/moneta-app/moneta/internal/config"
	"github.com/moneta-app/moneta/internal/extract"
	"github.com/moneta-app/moneta/internal/logger"
	"github.com/moneta-app/moneta/internal/textsource"
)

func main() {
	log := logger.New("cli")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(log)
	case "annotate":
		runAnnotate(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Moneta CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract   Run the extraction pipeline on a local file and print candidates")
	fmt.Println("  annotate  Print the sign-annotated view of a local file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runExtract(log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local statement file")
	mimeType := fs.String("mime", "", "Content type (defaults from the file extension)")
	configPath := fs.String("config", os.Getenv("MONETA_CONFIG"), "Path to YAML config file")
	noModel := fs.Bool("no-model", false, "Skip the generative model, use the regex extractor only")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	text, err := readAsText(*filePath, *mimeType)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	var model extract.ModelClient
	if !*noModel {
		gemini, err := extract.NewGeminiClient(ctx, cfg.Model.Name)
		if err != nil {
			log.Warn().Err(err).Msg("Generative model unavailable, using regex extractor")
		} else {
			model = gemini
		}
	}

	pipeline := extract.NewPipeline(cfg.Extraction, cfg.Model, model, log)
	cands := pipeline.Run(ctx, text, "")

	out, err := json.MarshalIndent(cands, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode candidates")
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "%d candidates\n", len(cands))
}

func runAnnotate(log zerolog.Logger) {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local statement file")
	mimeType := fs.String("mime", "", "Content type (defaults from the file extension)")
	configPath := fs.String("config", os.Getenv("MONETA_CONFIG"), "Path to YAML config file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	text, err := readAsText(*filePath, *mimeType)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	scanner := extract.NewHintScanner(cfg.Extraction)
	fmt.Println(extract.Annotate(text, scanner.Scan(text)))
}

// readAsText loads a local file through the same text sources the server
// uses, so CLI output matches what a real upload would produce.
func readAsText(path, mimeType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	if mimeType == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			mimeType = "text/csv"
		default:
			mimeType = "text/plain"
		}
	}
	return textsource.NewResolver().Text(mimeType, data)
}
