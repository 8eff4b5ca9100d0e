package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/cpu"

	"github.com/volquant/volsurf/deribit"
	"github.com/volquant/volsurf/pipeline"
	"github.com/volquant/volsurf/snapshot"
	"github.com/volquant/volsurf/surface"
	"github.com/volquant/volsurf/volslack"
)

const (
	defaultCurrency     = "BTC"
	defaultRiskFreeRate = 0.0
	defaultSnapshotDir  = "snapshots"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment as-is")
	}

	if apiURL := os.Getenv("DERIBIT_API_URL"); apiURL != "" {
		deribit.APIBase = apiURL
	}
	if os.Getenv("VOLSURF_DEBUG") != "" {
		go monitorCPUUsage()
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "slack":
		runSlack()
	default:
		fmt.Printf("Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: volsurf <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  build    Fetch quotes and build a volatility surface snapshot")
	fmt.Println("  history  Analyze stored snapshots")
	fmt.Println("  slack    Start the Slack bot")
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	currency := fs.String("currency", defaultCurrency, "underlying currency (BTC, ETH)")
	methodName := fs.String("method", "rbf", "surface method: grid, rbf or svi")
	gridSize := fs.Int("grid", surface.DefaultGridSize, "surface grid resolution per axis")
	rfr := fs.Float64("rfr", defaultRiskFreeRate, "risk-free rate for Greeks")
	save := fs.Bool("save", false, "save the snapshot to disk")
	saveRaw := fs.Bool("save-raw", false, "also save the annotated quote table")
	dir := fs.String("dir", defaultSnapshotDir, "snapshot directory")
	fs.Parse(args)

	method, err := surface.ParseMethod(*methodName)
	if err != nil {
		log.Fatal(err)
	}

	result, err := pipeline.Build(pipeline.BuildConfig{
		Currency:     strings.ToUpper(*currency),
		Method:       method,
		GridSize:     *gridSize,
		RiskFreeRate: *rfr,
	})
	if err != nil {
		log.Fatal(err)
	}

	printMetrics(result.Snapshot.Metrics)

	if method == surface.MethodSVI {
		fmt.Printf("\nSVI fit: %d expiration slices\n", len(result.SVISlices))
		for _, s := range result.SVISlices {
			fmt.Printf("  T=%.4fy  a=%.4f b=%.4f rho=%.4f m=%.4f sigma=%.4f  (%d quotes, residual %.6f)\n",
				s.TTEYears, s.Params.A, s.Params.B, s.Params.Rho, s.Params.M, s.Params.Sigma,
				s.NumQuotes, s.Residual)
		}
	}

	if *save || *saveRaw {
		store, err := snapshot.NewStore(*dir)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := store.Save(result.Snapshot, *saveRaw); err != nil {
			log.Fatal(err)
		}
	}
}

func runSlack() {
	appToken := os.Getenv("SLACK_APP_TOKEN")
	botToken := os.Getenv("SLACK_BOT_TOKEN")
	if appToken == "" || botToken == "" {
		log.Fatal("SLACK_APP_TOKEN and SLACK_BOT_TOKEN must be set")
	}

	bot := volslack.NewSlackBot(appToken, botToken)
	if err := bot.Start(); err != nil {
		log.Fatal(err)
	}
}

func monitorCPUUsage() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var cpuUsage float64
		percentage, err := cpu.Percent(time.Second, false)
		if err == nil && len(percentage) > 0 {
			cpuUsage = percentage[0]
		}
		fmt.Printf("\nCPU Usage: %.2f%%\n", cpuUsage)
	}
}
