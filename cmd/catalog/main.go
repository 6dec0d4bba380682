package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"aquarius-catalog/internal/catalog"
	"aquarius-catalog/internal/config"
	"aquarius-catalog/internal/datastore"
	"aquarius-catalog/internal/repository"
	"aquarius-catalog/internal/services"
	"aquarius-catalog/internal/timeutil"
	"aquarius-catalog/internal/ts"
	"aquarius-catalog/pkg/database"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

const version = "1.0.0"

func main() {
	dataType := flag.String("datatype", "*", "Data type filter for listings")
	interval := flag.String("interval", "*", "Interval filter for listings")
	location := flag.String("location", "", "Location identifier filter")
	operator := flag.String("operator", catalog.OperatorMatches, "Location filter operator: Matches, Contains, StartsWith, EndsWith")
	readTSID := flag.String("read", "", "TSID to read instead of listing the catalog")
	start := flag.String("start", "", "Read start (default: 30 days before end)")
	end := flag.String("end", "", "Read end (default: now)")
	tz := flag.String("tz", "", "Output time zone (default: machine zone)")
	dataAPI := flag.String("dataapi", "Corrected", "Raw or Corrected")
	irregular := flag.String("irregular", "", "Interval to report for irregular series, e.g. IrregHour")
	metadataOnly := flag.Bool("metadata-only", false, "Read metadata without points")
	export := flag.Bool("export", false, "Store the read time series in the database")
	requirement := flag.String("require", "", "Evaluate one @require datastore line and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("aquarius-catalog-cli", version, logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("aquarius_catalog_cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := datastore.NewDefaultRegistry().Create(ctx, cfg.DataStore, datastore.Dependencies{
		Logger:  logger,
		Metrics: metricsCollector,
	})
	if err != nil {
		logger.Fatal(ctx, "[CLI_ERROR] Failed to create datastore", logging.Fields{}, err)
	}
	defer store.Close(context.Background())

	status := store.Status()
	if status.Degraded {
		fmt.Fprintf(os.Stderr, "Datastore %s is degraded: %s\n", status.Name, status.Message)
	}
	for _, fetchErr := range status.FetchErrors {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", fetchErr)
	}

	if *requirement != "" {
		check := store.CheckRequirement(ctx, *requirement)
		fmt.Println(check.Message)
		if !check.Met {
			os.Exit(1)
		}
		return
	}

	if *readTSID == "" {
		if err := printCatalog(store.CurrentCatalog(), *dataType, *interval, *location, *operator); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		return
	}

	req := services.ReadRequest{
		TSID:              *readTSID,
		DataAPI:           *dataAPI,
		IrregularInterval: *irregular,
		OutputTimeZone:    *tz,
		ReadData:          !*metadataOnly,
	}
	if *start != "" {
		if req.ReadStart, err = timeutil.ParseDateTime(*start); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -start: %v\n", err)
			os.Exit(2)
		}
	}
	if *end != "" {
		if req.ReadEnd, err = timeutil.ParseDateTime(*end); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -end: %v\n", err)
			os.Exit(2)
		}
	}

	series, err := store.ReadTimeSeries(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(1)
	}
	printSeries(series)

	if !*export {
		return
	}
	if !cfg.Database.Enabled {
		fmt.Fprintln(os.Stderr, "Export requires DB_ENABLED=true")
		os.Exit(2)
	}

	db, err := database.NewPostgresDB(ctx, &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[CLI_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	exporter := services.NewExportService(repository.NewTimeSeriesRepository(db, logger, metricsCollector), logger, metricsCollector)
	summary, err := exporter.Export(ctx, series)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nExported %d values (%d missing) for %s\n", summary.Values, summary.Missing, summary.TSID)
}

func printCatalog(cat *catalog.Catalog, dataType, interval, location, operator string) error {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("CATALOG (%d records, %d duplicates, %d with problems)\n", cat.Len(), cat.DuplicateCount(), cat.ProblemCount())
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Data types: %s\n", strings.Join(cat.DataTypeChoices(true), ", "))
	fmt.Printf("Intervals:  %s\n", strings.Join(cat.DataIntervals(dataType, true), ", "))
	fmt.Printf("Locations:  %d\n\n", len(cat.MatchingLocations(dataType, interval)))

	query := catalog.Query{DataType: dataType, Interval: interval}
	if location != "" {
		cond, err := catalog.ParseCondition(operator, location)
		if err != nil {
			return err
		}
		query.Location = cond
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TSID\tLOCATION NAME\tUNITS\tUNIQUE ID\tPROBLEMS")
	for _, row := range catalog.Rows(cat.Select(query)) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.TSID, row.LocationName, row.Units, row.UniqueID, row.Problems)
	}
	return w.Flush()
}

func printSeries(series *ts.TimeSeries) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(series.Identifier.String())
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Description: %s\n", series.Description)
	fmt.Printf("Units:       %s\n", series.Units)
	fmt.Printf("Requested:   %s to %s\n", series.Date1Original.Format("2006-01-02 15:04:05 MST"), series.Date2Original.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Data:        %s to %s\n", series.Date1.Format("2006-01-02 15:04:05 MST"), series.Date2.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Points:      %d\n", series.Len())

	points := series.Points()
	missing := 0
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if series.IsMissing(p.Value) {
			missing++
			continue
		}
		minV = math.Min(minV, p.Value)
		maxV = math.Max(maxV, p.Value)
	}
	fmt.Printf("Missing:     %d\n", missing)
	if missing < len(points) {
		fmt.Printf("Range:       %g to %g\n", minV, maxV)
	}

	for i, p := range points {
		if i == 10 {
			fmt.Printf("  ... and %d more points\n", len(points)-10)
			break
		}
		fmt.Printf("  %s  %g\n", p.Time.Format("2006-01-02 15:04:05"), p.Value)
	}
}
