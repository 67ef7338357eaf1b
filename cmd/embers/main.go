package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yungbote/embers-fuse/internal/app"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: embers [flags] <stage>

stages:
  encode            embed every metadata key and project summary
  cluster-keys      cluster key embeddings and label pure clusters
  integrate         assemble per-document key integration
  align             synthesize and apply per-key transforms
  harmonize-geo     map place names to countries
  cluster-projects  cluster documents by research topic
  all               run every stage in order

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath string
		documents  idList
		reset      bool
		rebuild    bool
		label      string
	)
	flag.StringVar(&configPath, "config", "", "YAML config file (defaults to $EMBERS_CONFIG)")
	flag.Var(&documents, "documents", "document id to process (repeatable or comma separated)")
	flag.BoolVar(&reset, "reset", false, "discard stored sample records before aligning")
	flag.BoolVar(&rebuild, "rebuild-corpus", false, "recompute cached corpus files")
	flag.StringVar(&label, "label", "", "canonical label to harmonize geographically")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	stage := flag.Arg(0)

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		os.Exit(1)
	}

	payload := map[string]any{
		"reset":          reset,
		"rebuild_corpus": rebuild,
	}
	if len(documents) > 0 {
		payload["documents"] = []string(documents)
	}
	if label != "" {
		payload["label"] = label
	}

	runErr := application.RunStage(ctx, stage, payload)
	if err := application.Close(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", stage, runErr)
		os.Exit(1)
	}
}
