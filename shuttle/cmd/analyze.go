package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/shuttlelab/shuttle/analysis"
	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/duplication"
	"github.com/shuttlelab/shuttle/reporting"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [workload file]",
	Short: "Analyze the memory banking of a workload.",
	Long: "`analyze [workload file]` evaluates the duplicate candidates of " +
		"every memory in the workload, commits the decisions, and records " +
		"them into a report database.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr,
				"Error: workload file argument is required")
			os.Exit(1)
		}

		workload, err := LoadWorkload(args[0])
		if err != nil {
			log.Fatalf("Error loading workload: %v", err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = os.Getenv("SHUTTLE_REPORT")
		}

		connStr, _ := cmd.Flags().GetString("clickhouse")
		if connStr == "" {
			connStr = os.Getenv("SHUTTLE_CLICKHOUSE")
		}

		runAnalysis(workload, newReportRecorder(output, connStr))
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().String("output", "",
		"Report database path, without the .sqlite3 extension")
	analyzeCmd.Flags().String("clickhouse", "",
		"Record into ClickHouse instead of a local file, "+
			"clickhouse://host:port/db?username=u&password=p")
}

func newReportRecorder(output, connStr string) reporting.DataRecorder {
	if connStr == "" {
		return reporting.New(output)
	}

	conn, err := reporting.ParseClickHouseConn(connStr)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}

	return reporting.NewClickHouseRecorder(conn, 0)
}

func runAnalysis(w *Workload, recorder reporting.DataRecorder) {
	runRecorder := reporting.NewRunRecorder(recorder)
	runRecorder.Start()

	store := ir.NewStore()

	analyzer := analysis.MakeBankingAnalyzerBuilder().
		WithStore(store).
		WithScopeInfo(w.scopeTable()).
		Build(w.Name)

	analyzer.AcceptHook(reporting.NewDecisionRecorder(recorder))

	for _, m := range w.Memories {
		mem := ir.Value(m.Sym)

		insts, err := analyzer.AnalyzeMemory(mem, m.groups())
		if err != nil {
			log.Fatalf("Error analyzing %s: %v", mem, err)
		}

		if err := analyzer.Commit(mem, insts); err != nil {
			log.Fatalf("Error committing %s: %v", mem, err)
		}

		printSummary(os.Stdout, mem, insts)
	}

	runRecorder.End()
}

func printSummary(w io.Writer, mem ir.Value, insts []duplication.Instance) {
	for i, inst := range insts {
		m := inst.ToMemory()

		fmt.Fprintf(w, "%s dup %d: banks=%d depth=%d cost=%.2f\n",
			mem, i, m.TotalBanks(), m.Depth, inst.Cost)
	}
}
