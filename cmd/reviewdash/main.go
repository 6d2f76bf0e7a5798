package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"reviewdash/internal/config"
	"reviewdash/internal/listener"
	"reviewdash/internal/pipeline"
	"reviewdash/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		// One-off conversion; nothing is stored.
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "", "xlsx|json|html|csv|eml (default: from extension)")
		output := fs.String("output", "", "output .xlsx or .json path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		rows, err := pipeline.ExtractRowsFromInput(*inType, *input)
		must(err)
		out := pipeline.NewTransformer(cfg).Transform(rows)
		must(pipeline.ExportRows(out, *output))
		fmt.Printf("run done rows=%d kept=%d output=%s\n", len(rows), len(out), *output)
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "", "xlsx|json|html|csv|eml (default: from extension)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		processor := pipeline.NewProcessingService(db, cfg)
		res, err := processor.ProcessFile(*input, *inType)
		must(err)
		if res.Duplicate {
			fmt.Printf("already imported id=%d rows=%d kept=%d\n", res.ImportID, res.Total, res.Kept)
			return
		}
		fmt.Printf("imported id=%d rows=%d kept=%d\n", res.ImportID, res.Total, res.Kept)
	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		importID := fs.Int("importId", 0, "import id")
		out := fs.String("out", "", "output .xlsx or .json path")
		_ = fs.Parse(os.Args[2:])
		if *importID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--importId and --out are required"))
		}
		processor := pipeline.NewProcessingService(db, cfg)
		count, err := processor.ExportImport(*importID, *out)
		must(err)
		fmt.Printf("exported %d rows to %s\n", count, *out)
	case "reprocess":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		importID := fs.Int("importId", 0, "import id")
		_ = fs.Parse(os.Args[2:])
		if *importID == 0 {
			must(fmt.Errorf("--importId is required"))
		}
		processor := pipeline.NewProcessingService(db, cfg)
		res, err := processor.ReprocessImport(*importID)
		must(err)
		fmt.Printf("reprocessed id=%d rows=%d kept=%d\n", res.ImportID, res.Total, res.Kept)
	case "imports":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", "imported", "imported|exported")
		limit := fs.Int("limit", 50, "max imports")
		_ = fs.Parse(os.Args[2:])
		imports, err := db.ListImportsByStatus(*status, *limit)
		must(err)
		for _, imp := range imports {
			runs, err := db.CountRuns(imp.ID)
			must(err)
			fmt.Printf("%d\t%s\t%s\trows=%d\tkept=%d\truns=%d\t%s\n", imp.ID, imp.SourceType, imp.SourceName, imp.TotalRows, imp.KeptRows, runs, imp.CreatedAt)
		}
	case "listen":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		must(listener.NewService(db, cfg).Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: reviewdash <command>")
	fmt.Println("commands:")
	fmt.Println("  import --input=PATH [--type=xlsx|json|html|csv|eml]")
	fmt.Println("  export --importId=1 --out=./out/result.xlsx|.json")
	fmt.Println("  reprocess --importId=1")
	fmt.Println("  imports [--status=imported|exported] [--limit=50]")
	fmt.Println("  listen")
	fmt.Println("  run --input=PATH [--type=...] --output=PATH.xlsx|.json")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
