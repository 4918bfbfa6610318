// cyberkb - Security-assessment knowledge base CLI
//
// Typical usage:
//
//	cyberkb ingest ./loot                          # autodetect everything under ./loot
//	cyberkb ingest --ingestor ntds dump.txt        # force one ingestor
//	cyberkb scan ./loot                            # ingest, then run the default sweep
//	cyberkb scan --control password.reuse ./loot   # run only covering scanners
//	cyberkb list                                   # show ingestors, scanners, controls
package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redopsio/cyberkb/pkg/config"
	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/ingestors"
	"github.com/redopsio/cyberkb/pkg/metrics"
	"github.com/redopsio/cyberkb/pkg/scanners"
)

const appName = "cyberkb"

var (
	flagConfig      string
	flagVerbose     bool
	flagIngestor    string
	flagScanner     string
	flagControls    []string
	flagMetricsAddr string
	flagKOOnly      bool
)

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Security-assessment knowledge base: ingest pentest tool output, evaluate controls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML configuration")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	ingest := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Ingest tool output into the knowledge base and print what was stored",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
	ingest.Flags().StringVar(&flagIngestor, "ingestor", "all", "ingestor to use (\"all\" autodetects)")

	scan := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Ingest tool output, run scanners and print the observations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScan,
	}
	scan.Flags().StringVar(&flagIngestor, "ingestor", "all", "ingestor to use (\"all\" autodetects)")
	scan.Flags().StringVar(&flagScanner, "scanner", "", "run a single scanner instead of the default sweep")
	scan.Flags().StringSliceVar(&flagControls, "control", nil, "run only the scanners covering these controls")
	scan.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while scanning")
	scan.Flags().BoolVar(&flagKOOnly, "ko", true, "print failing observations only")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered ingestors, scanners and the controls they cover",
		RunE:  runList,
	}

	root.AddCommand(ingest, scan, list)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// newDB assembles the knowledge base with both registries and the
// configured logger.
func newDB() (*cyberdb.CyberDB, *scanners.Registry, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}

	level := core.LogLevelInfo
	if flagVerbose {
		level = core.LogLevelDebug
	}
	logger := core.NewDefaultLogger(appName, level)

	scanReg := scanners.NewRegistry()
	db := cyberdb.New(cyberdb.NewMemStore(),
		cyberdb.WithConfig(cfg),
		cyberdb.WithLogger(logger),
		cyberdb.WithIngestors(ingestors.NewRegistry()),
		cyberdb.WithScanners(scanReg),
	)
	return db, scanReg, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	db, _, err := newDB()
	if err != nil {
		return err
	}
	if err := db.Ingest(flagIngestor, args...); err != nil {
		return err
	}
	printCounts(db)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	db, scanReg, err := newDB()
	if err != nil {
		return err
	}

	if flagMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(flagMetricsAddr, mux); err != nil {
				db.Logger().Error("metrics server: %v", err)
			}
		}()
	}

	if err := db.Ingest(flagIngestor, args...); err != nil {
		return err
	}

	switch {
	case flagScanner != "":
		if err := db.Scan(flagScanner); err != nil {
			return err
		}
	case len(flagControls) > 0:
		if err := db.ScanForControls(flagControls...); err != nil {
			return err
		}
	default:
		scanReg.RunDefault(db)
	}

	return printObservations(db)
}

func runList(cmd *cobra.Command, args []string) error {
	ingReg := ingestors.NewRegistry()
	fmt.Println("Ingestors:")
	for _, ing := range ingReg.All() {
		fmt.Printf("  %-22s %s\n", ing.Name(), ing.Description())
	}

	scanReg := scanners.NewRegistry()
	fmt.Println("\nScanners:")
	for _, sc := range scanReg.All() {
		fmt.Printf("  %-22s %s\n", sc.Name(), sc.Description())
		for _, control := range sc.Controls() {
			fmt.Printf("      %s\n", control)
		}
	}
	return nil
}

func printCounts(db *cyberdb.CyberDB) {
	entities := cyberdb.Entities()
	sort.Strings(entities)
	for _, entity := range entities {
		seq, err := db.Request(entity)
		if err != nil {
			continue
		}
		count := 0
		for range seq {
			count++
		}
		if count > 0 {
			fmt.Printf("%-16s %d\n", entity, count)
		}
	}
}

func printObservations(db *cyberdb.CyberDB) error {
	seq, err := db.Request("control")
	if err != nil {
		return err
	}

	total, failed := 0, 0
	for rec := range seq {
		total++
		ko := rec.String("status") == cyberdb.StatusKO
		if ko {
			failed++
		}
		if flagKOOnly && !ko {
			continue
		}
		sev := rec.String("severity")
		if sev == "" {
			sev = "-"
		}
		fmt.Printf("[%-8s] %-35s %s\n", strings.ToUpper(sev), rec.String("name"), formatDetails(rec.Details("details")))
	}
	fmt.Printf("\n%d checks evaluated, %d findings\n", total, failed)
	return nil
}

func formatDetails(details cyberdb.Details) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}
