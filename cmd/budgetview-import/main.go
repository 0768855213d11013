package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"budgetview/internal/cli"
	"budgetview/internal/core"
	"budgetview/internal/log"
	"budgetview/internal/services"
)

// budgetview-import loads a CSV file into the ledger in one transaction.
// Expected columns: date, description, amount, payment_source, category,
// subcategory. A header row is skipped when the first field says "date".

func main() {
	var (
		filePath = flag.String("file", "", "CSV file to import (required)")
		dryRun   = flag.Bool("dry-run", false, "parse and validate without writing")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentImport)

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: budgetview-import -file transactions.csv [-dry-run]")
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	store := cli.OpenStore(logger, cfg)
	defer store.Close()

	f, err := os.Open(*filePath)
	if err != nil {
		logger.Error("Failed to open CSV file", log.FieldError, err, "file", *filePath)
		os.Exit(1)
	}
	defer f.Close()

	txs, err := parseCSV(f)
	if err != nil {
		logger.Error("Failed to parse CSV", log.FieldError, err, "file", *filePath)
		os.Exit(1)
	}
	logger.Info("Parsed CSV file", "file", *filePath, log.FieldRowCount, len(txs))

	if *dryRun {
		for i, t := range txs {
			if err := t.Validate(); err != nil {
				logger.Error("Invalid row", "row", i+1, log.FieldError, err)
				os.Exit(1)
			}
		}
		logger.Info("Dry run passed, nothing written", log.FieldRowCount, len(txs))
		return
	}

	ledger := services.NewLedgerService(store, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := ledger.ImportTransactions(ctx, txs)
	if err != nil {
		logger.Error("Import failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Import complete", log.FieldOperation, log.OpImport, log.FieldRowCount, n)
}

func parseCSV(r io.Reader) ([]core.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var txs []core.Transaction
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}
		tx, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func parseRecord(record []string) (core.Transaction, error) {
	if len(record) < 5 {
		return core.Transaction{}, fmt.Errorf("expected at least 5 columns, got %d", len(record))
	}

	date, err := core.ParseDate(strings.TrimSpace(record[0]))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", record[0], err)
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(record[2]))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", record[2], err)
	}

	tx := core.Transaction{
		Date:          date,
		Description:   strings.TrimSpace(record[1]),
		Amount:        core.Money{Cents: cents},
		PaymentSource: strings.TrimSpace(record[3]),
		Category:      strings.TrimSpace(record[4]),
	}
	if len(record) > 5 {
		tx.Subcategory = strings.TrimSpace(record[5])
	}
	return tx, nil
}
