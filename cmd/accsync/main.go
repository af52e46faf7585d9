// accsync runs one folder permission sync from the command line. The desired
// state comes from a JSON document file or from the configured document
// store; with --dry-run the batch calls are printed instead of sent.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/acc"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/app"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/config"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/hierarchy"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/lock"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/reconcile"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
)

const envAPSToken = "APS_TOKEN"

type options struct {
	hubID       string
	projectID   string
	token       string
	document    string
	operatorID  string
	concurrency int
	dryRun      bool
	liveNames   bool
	quiet       bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	var opts options
	flagSet := pflag.NewFlagSet("accsync", pflag.ContinueOnError)
	flagSet.StringVar(&opts.hubID, "hub", "", "hub id (b.<account>)")
	flagSet.StringVar(&opts.projectID, "project", "", "project id")
	flagSet.StringVar(&opts.token, "token", "", "APS access token (default: $"+envAPSToken+")")
	flagSet.StringVar(&opts.document, "document", "", "desired-state JSON file (default: the operator's saved document)")
	flagSet.StringVar(&opts.operatorID, "operator", "", "operator user id, required without --document")
	flagSet.IntVar(&opts.concurrency, "concurrency", 0, "folders processed at once (default: $SYNC_CONCURRENCY)")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "print the batch calls instead of sending them")
	flagSet.BoolVar(&opts.liveNames, "live-names", false, "name folders in the summary by their current path in the project")
	flagSet.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress bar")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if opts.token == "" {
		opts.token = os.Getenv(envAPSToken)
	}
	if opts.hubID == "" || opts.projectID == "" || opts.token == "" {
		flagSet.PrintDefaults()
		return errors.New("--hub, --project and a token are required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.concurrency <= 0 {
		opts.concurrency = cfg.Sync.Concurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		docs reconcile.DocumentLoader
		doc  *permission.FolderPermissionDocument
	)
	if opts.document != "" {
		doc, err = readDocument(opts.document)
		if err != nil {
			return err
		}
		if opts.operatorID == "" {
			opts.operatorID = "cli"
		}
	} else {
		if opts.operatorID == "" {
			return errors.New("--operator is required to load a saved document")
		}
		stored, release, err := app.OpenDocumentStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()
		docs = stored
	}

	client := acc.New(acc.Options{
		BaseURL:           cfg.APS.BaseURL,
		Timeout:           cfg.APS.HTTPTimeout,
		RequestsPerSecond: cfg.APS.RequestsPerSecond,
		Burst:             cfg.APS.Burst,
		UsersPageSize:     cfg.APS.UsersPageSize,
		RetryCount:        3,
	}).WithToken(opts.token)

	var (
		projectClient reconcile.ProjectClient = client
		recorder      *reconcile.Recorder
	)
	if opts.dryRun {
		projectClient, recorder = reconcile.DryRun(client)
	}

	// Log lines would break the bar, so the engine logs only without one.
	engineLog := log.New(os.Stderr, "", log.LstdFlags)
	if !opts.quiet {
		engineLog = log.New(io.Discard, "", 0)
	}
	service := reconcile.NewService(reconcile.NewEngine(engineLog), docs, lock.NewMemory(),
		reconcile.WithConcurrency(opts.concurrency),
		reconcile.WithServiceLogger(engineLog),
	)

	var folderNames map[string]string
	if opts.liveNames {
		rows, err := hierarchy.NewFetcher(client, hierarchy.WithLogger(engineLog)).FetchHierarchy(ctx, opts.hubID, opts.projectID, nil)
		if err != nil {
			return fmt.Errorf("fetch folder names: %w", err)
		}
		folderNames = hierarchy.Index(rows)
	}

	progress, finish := progressSink(opts.quiet)
	summary, err := service.Run(ctx, reconcile.RunRequest{
		OperatorID:  opts.operatorID,
		HubID:       opts.hubID,
		ProjectID:   opts.projectID,
		Client:      projectClient,
		Document:    doc,
		Progress:    progress,
		FolderNames: folderNames,
	})
	finish()
	if err != nil {
		return err
	}

	out := map[string]any{"summary": summary}
	if recorder != nil {
		out["calls"] = recorder.Calls()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if summary.Aborted || len(summary.Errors) > 0 {
		return fmt.Errorf("sync finished with %d errors", len(summary.Errors))
	}
	return nil
}

func readDocument(path string) (*permission.FolderPermissionDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var doc permission.FolderPermissionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// progressSink returns a progress callback drawing a bar on stderr and a
// func that completes the bar.
func progressSink(quiet bool) (reconcile.ProgressFunc, func()) {
	if quiet {
		return nil, func() {}
	}

	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	progress := func(processed, total int, phase reconcile.Phase) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.Default(int64(total), string(phase))
		}
		_ = bar.Set(processed)
	}
	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return progress, finish
}
