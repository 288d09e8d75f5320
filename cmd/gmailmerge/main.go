// The gmailmerge command renders a message template against a CSV
// recipient table and sends (or drafts) one personalized email per
// row through the GMail API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/matta/gmailmerge/internal/homedir"
	"github.com/matta/gmailmerge/internal/tracehttp"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	_ "github.com/mattn/go-sqlite3"
)

var (
	flagTrace bool
	flagDB    string
)

var rootCmd = &cobra.Command{
	Use:   "gmailmerge",
	Short: "Mail merge over the GMail API",
	Long: `gmailmerge sends personalized email from a CSV recipient table and a
message template. It can start new conversations, follow up inside
threads recorded by an earlier run, or stash everything as drafts.

Example:
  gmailmerge send --csv contacts.csv --config merge.yaml
  gmailmerge runs`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagTrace {
			tracehttp.WrapDefaultTransport()
		}
	},
}

// stateDir holds the token cache, run history and outbox archive.
func stateDir() string {
	return filepath.Join(homedir.Get(), ".gmailmerge")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagTrace, "trace", "T", false, "dump HTTP requests and responses")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", filepath.Join(stateDir(), "history.db"), "run history database")
}

func main() {
	// Interrupt stops the run between rows; the row in flight
	// finishes first.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal("Failed", "error", err)
	}
}
