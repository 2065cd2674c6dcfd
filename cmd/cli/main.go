package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/artifact-engine/internal/degrade"
	"github.com/dvloznov/artifact-engine/internal/gcsuploader"
	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/rs/zerolog"
)

// exitUsage is returned for requests the user has to fix, such as asking
// for zero documents.
const exitUsage = 2

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		os.Exit(runGenerate(os.Args[2:]))
	case "profiles":
		runProfiles()
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Synthetic Financial Document Generator")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate  Fabricate, render, degrade and export documents")
	fmt.Println("  profiles  List the degradation tiers and their effects")
	fmt.Println("  upload    Upload an existing output tree to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runProfiles() {
	for _, tier := range degrade.Tiers {
		fmt.Println(titleStyle.Render(string(tier)))
		for _, line := range degrade.Describe(degrade.ProfileFor(string(tier))) {
			fmt.Printf("  %s\n", line)
		}
	}
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketArg := fs.String("bucket", "", "GCS bucket name or gs://bucket/prefix")
	dir := fs.String("dir", "", "Local output directory to upload")
	prefix := fs.String("prefix", "", "Object name prefix (overrides a prefix in -bucket)")
	fs.Parse(os.Args[2:])

	if *bucketArg == "" || *dir == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -dir PATH [-prefix P]")
	}

	bucket, objPrefix, err := splitBucket(*bucketArg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -bucket")
	}
	if *prefix != "" {
		objPrefix = *prefix
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	n, err := uploadTree(ctx, bucket, objPrefix, *dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %d files from %s to gs://%s/%s\n", n, *dir, bucket, objPrefix)
}

func uploadTree(ctx context.Context, bucket, prefix, dir string) (int, error) {
	store, err := gcsuploader.NewBucketStore(ctx, bucket)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return gcsuploader.NewUploader(store).UploadDir(ctx, dir, prefix)
}

// splitBucket accepts a bare bucket name or a gs://bucket/prefix URI.
func splitBucket(s string) (bucket, prefix string, err error) {
	if strings.HasPrefix(s, "gs://") {
		return gcsuploader.ParseGCSURI(s)
	}
	if s == "" || strings.Contains(s, "/") {
		return "", "", fmt.Errorf("invalid bucket name: %q", s)
	}
	return s, "", nil
}
