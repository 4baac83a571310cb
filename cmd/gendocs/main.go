package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra/doc"

	"github.com/OnisOris/pionctl/internal/cmd"
)

func main() {
	outputDir := "./docs/commands"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	filePrepender := func(filename string) string {
		name := filepath.Base(filename)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		return "---\ntitle: \"" + strings.ReplaceAll(name, "_", " ") + "\"\n---\n\n"
	}

	linkHandler := func(name string) string {
		return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))) + "/"
	}

	root := cmd.GetRootCmd()
	root.DisableAutoGenTag = true
	if err := doc.GenMarkdownTreeCustom(root, outputDir, filePrepender, linkHandler); err != nil {
		log.Fatalf("Failed to generate documentation: %v", err)
	}

	if err := doc.GenManTree(root, &doc.GenManHeader{Title: "PIONCTL", Section: "1"}, filepath.Join(outputDir, "man")); err != nil {
		log.Fatalf("Failed to generate man pages: %v", err)
	}

	log.Printf("Documentation generated in %s", outputDir)
}
