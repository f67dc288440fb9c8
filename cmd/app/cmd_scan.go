package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"RoomArb/internal/di"
	"RoomArb/internal/usecase"
	"RoomArb/pkg/util"
)

// scanCmd runs one multi-city opportunity scan and prints the result as JSON.
var scanCmd = &cobra.Command{
	Use:   "scan [city...]",
	Short: "Scan cities for live buy opportunities",
	Long: `Scan one or more cities for hotels whose live price is below their
historical average. Cities default to pipeline.scan_cities.

Examples:
  roomarb scan Lisbon Porto --check-in 2025-07-04 --nights 2
  roomarb scan --min-margin 12 --max-risk 60 --publish`,
	RunE: runScan,
}

var (
	scanCheckIn   string
	scanNights    int
	scanAdults    int
	scanMinMargin float64
	scanMaxRisk   float64
	scanLimit     int
	scanPredict   bool
	scanPublish   bool
	scanTimeout   time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanCheckIn, "check-in", "", "check-in date YYYY-MM-DD (default tomorrow)")
	scanCmd.Flags().IntVar(&scanNights, "nights", 1, "length of stay")
	scanCmd.Flags().IntVar(&scanAdults, "adults", usecase.DefaultAdults, "guests per room")
	scanCmd.Flags().Float64Var(&scanMinMargin, "min-margin", 0, "minimum expected margin percent")
	scanCmd.Flags().Float64Var(&scanMaxRisk, "max-risk", 0, "maximum risk score 0-100 (0 = any)")
	scanCmd.Flags().IntVar(&scanLimit, "limit", usecase.DefaultOpportunityLimit, "opportunities kept per city")
	scanCmd.Flags().BoolVar(&scanPredict, "predict", false, "attach an ensemble price prediction")
	scanCmd.Flags().BoolVar(&scanPublish, "publish", false, "publish results to Kafka")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 5*time.Minute, "overall scan timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Kafka.Enabled = cfg.Kafka.Enabled && scanPublish

	cities := args
	if len(cities) == 0 {
		cities = cfg.Pipeline.ScanCities
	}
	if len(cities) == 0 {
		return fmt.Errorf("no cities given and pipeline.scan_cities is empty")
	}

	checkIn := util.StartOfDay(time.Now()).AddDate(0, 0, 1)
	if scanCheckIn != "" {
		t, ok := util.ParseTime(scanCheckIn)
		if !ok {
			return fmt.Errorf("invalid --check-in %q", scanCheckIn)
		}
		checkIn = t
	}
	if scanNights < 1 {
		return fmt.Errorf("--nights must be at least 1")
	}

	comps, err := di.InitializeComponents(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer comps.App.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	res, err := comps.Finder.ScanAllCities(ctx, cities, usecase.FindParams{
		CheckIn:        checkIn,
		CheckOut:       checkIn.AddDate(0, 0, scanNights),
		Adults:         scanAdults,
		MinMarginPct:   scanMinMargin,
		MaxRiskScore:   scanMaxRisk,
		Limit:          scanLimit,
		WithPrediction: scanPredict || cfg.Pipeline.PredictOnScan,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
