// Command quizflow-cards writes the printable difficulty cards as PNG files.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/quizflow/quizflow/internal/scan"
	"github.com/quizflow/quizflow/internal/token"
)

func main() {
	out := flag.String("out", ".", "output directory")
	size := flag.Int("size", 600, "card size in pixels")
	flag.Parse()

	if err := writeCards(*out, *size); err != nil {
		fmt.Fprintf(os.Stderr, "quizflow-cards: %v\n", err)
		os.Exit(1)
	}
}

func writeCards(dir string, size int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, d := range []token.Difficulty{token.Easy, token.Medium, token.Hard} {
		img, err := scan.EncodeQR(d.Payload(), size)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("card-%s-%s.png", d.Code(), d))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create card: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		fmt.Println(path)
	}
	return nil
}
