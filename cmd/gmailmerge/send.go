package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/matta/gmailmerge/internal/archive"
	"github.com/matta/gmailmerge/internal/config"
	"github.com/matta/gmailmerge/internal/gmail"
	"github.com/matta/gmailmerge/internal/gmailhttp"
	"github.com/matta/gmailmerge/internal/label"
	"github.com/matta/gmailmerge/internal/merge"
	"github.com/matta/gmailmerge/internal/message"
	"github.com/matta/gmailmerge/internal/persist"
	"github.com/matta/gmailmerge/internal/report"
	"github.com/matta/gmailmerge/internal/table"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagCSV    string
	flagConfig string
	flagOut    string
	flagCreds  string
	flagToken  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send or draft one personalized message per recipient row",
	Long: `send processes the recipient table strictly in order. Each row is
validated, rendered and transmitted; failures affect only their own
row. The updated table, with ThreadId and RfcMessageId columns
refreshed for follow-up runs, is written back when the run ends.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&flagCSV, "csv", "", "recipient table (CSV, header row required)")
	sendCmd.Flags().StringVar(&flagConfig, "config", "merge.yaml", "merge config file")
	sendCmd.Flags().StringVar(&flagOut, "out", "", "updated table output path (default: overwrite --csv)")
	sendCmd.Flags().StringVar(&flagCreds, "credentials", "client_secret.json", "OAuth client secret file")
	sendCmd.Flags().StringVar(&flagToken, "token", filepath.Join(stateDir(), "token.json"), "OAuth token cache")
	sendCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	rows, err := table.LoadFile(flagCSV)
	if err != nil {
		return err
	}
	log.Info("loaded recipient table", "rows", len(rows), "path", flagCSV)

	httpClient, err := gmailhttp.New(ctx, gmailhttp.Options{
		CredentialsFile: flagCreds,
		TokenFile:       flagToken,
	})
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail HTTP client")
	}
	svc, err := gmail.New(httpClient)
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail")
	}

	labelID, err := label.Ensure(ctx, svc, cfg.Label)
	if err != nil {
		log.Warn("continuing without labeling", "error", err)
	}

	if cfg.Mode != message.ModeDraft {
		if est := report.EstimateDuration(len(rows), cfg.DelaySeconds); est.Avg > 0 {
			log.Info("estimated completion",
				"rows", len(rows),
				"min", est.Min.Round(time.Second),
				"max", est.Max.Round(time.Second))
		}
	}

	db, err := persist.Open(ctx, flagDB)
	if err != nil {
		return errors.Wrap(err, "unable to initialize run history")
	}
	defer db.Close()

	engine := &merge.Engine{Transport: svc}
	if arch, err := archive.New(filepath.Join(stateDir(), "outbox")); err != nil {
		log.Warn("outbox archive unavailable", "error", err)
	} else {
		engine.Archive = arch
	}

	run := persist.Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Mode:      cfg.Mode,
		LabelID:   labelID,
		Subject:   cfg.Subject,
	}

	// The engine feeds outcomes to the history writer over a
	// channel; transport calls stay strictly sequential while the
	// audit records land off the hot path.
	grp, gctx := errgroup.WithContext(ctx)
	outcomes := make(chan message.Outcome, 100)
	engine.Handler = func(o message.Outcome) error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case outcomes <- o:
			return nil
		}
	}

	var results []message.Outcome
	grp.Go(func() error {
		defer close(outcomes)
		var err error
		results, err = engine.Run(gctx, rows, cfg, labelID)
		return err
	})
	grp.Go(func() error {
		return db.Record(gctx, run, outcomes)
	})
	runErr := grp.Wait()

	// Rows already processed keep their correlation ids even when
	// the run stopped early; export before reporting the error.
	out := flagOut
	if out == "" {
		out = flagCSV
	}
	if err := table.ExportFile(out, rows); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			log.Error("could not write updated table", "error", err)
		}
	} else {
		log.Info("wrote updated table", "path", out)
	}

	summary := report.Summarize(results)
	fmt.Printf("run %s: %s\n", run.ID, summary)
	return runErr
}
