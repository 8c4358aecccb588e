package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	server := fs.String("server", "http://localhost:7860", "Pothole server base URL")
	session := fs.String("session", "", "Session id (default: random uuid)")
	gpsPath := fs.String("gps", "", "CSV file with timestamp,lat,lon rows")
	imagesDir := fs.String("images", "", "Directory containing <timestamp>.jpg frames")
	apiKey := fs.String("api-key", "", "API key sent as X-API-Key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *gpsPath == "" && *imagesDir == "" {
		return fmt.Errorf("nothing to replay: set -gps and/or -images")
	}
	if *session == "" {
		*session = uuid.NewString()
	}

	var fixes []gpsRow
	if *gpsPath != "" {
		f, err := os.Open(*gpsPath)
		if err != nil {
			return fmt.Errorf("failed to open GPS file: %w", err)
		}
		fixes, err = readGPS(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	var frames []frame
	if *imagesDir != "" {
		var skipped int
		var err error
		frames, skipped, err = scanFrames(*imagesDir)
		if err != nil {
			return err
		}
		if skipped > 0 {
			fmt.Fprintf(out, "⚠️  Skipped %d files (name is not <timestamp>.jpg)\n", skipped)
		}
	}

	steps := merge(fixes, frames)
	if len(steps) == 0 {
		fmt.Fprintln(out, "No GPS rows or images found to replay")
		return nil
	}

	client := &uploader{
		baseURL: *server,
		apiKey:  *apiKey,
		session: *session,
		http:    &http.Client{Timeout: 60 * time.Second},
	}

	fmt.Fprintf(out, "Replaying %d GPS fixes and %d images as session %s\n", len(fixes), len(frames), *session)
	summary, err := client.replay(steps, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n📊 Replay summary:\n")
	fmt.Fprintf(out, "   GPS fixes sent: %d\n", summary.gps)
	fmt.Fprintf(out, "   Images sent: %d\n", summary.images)
	fmt.Fprintf(out, "   Potholes detected: %d\n", summary.potholes)
	if summary.failed > 0 {
		fmt.Fprintf(out, "   Failed requests: %d\n", summary.failed)
	}
	return nil
}
