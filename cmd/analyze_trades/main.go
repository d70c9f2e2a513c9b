// Command analyze_trades prints a per-asset breakdown of the bot's
// trade history straight from the database.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"pocket-options-bot/config"
	"pocket-options-bot/internal/database"
)

type assetStats struct {
	Asset         string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	PendingTrades int
	TotalProfit   float64
	WinRate       float64
	AvgProfit     float64
}

const historyDepth = 1000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := database.NewRepository(db)
	trades, err := repo.GetRecentTrades(ctx, historyDepth)
	if err != nil {
		fmt.Printf("❌ Failed to load trades: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("================================================================================")
	fmt.Println("📊 TRADE HISTORY ANALYSIS")
	fmt.Println("================================================================================")

	if len(trades) == 0 {
		fmt.Println("\nNo trades recorded yet.")
		return
	}

	byAsset := make(map[string]*assetStats)
	totalProfit := 0.0
	settled, wins := 0, 0

	for _, trade := range trades {
		stats, ok := byAsset[trade.Asset]
		if !ok {
			stats = &assetStats{Asset: trade.Asset}
			byAsset[trade.Asset] = stats
		}
		stats.TotalTrades++

		if trade.Outcome == nil {
			stats.PendingTrades++
			continue
		}

		settled++
		profit := 0.0
		if trade.Profit != nil {
			profit = *trade.Profit
		}
		stats.TotalProfit += profit
		totalProfit += profit

		if *trade.Outcome == "win" {
			stats.WinningTrades++
			wins++
		} else {
			stats.LosingTrades++
		}
	}

	assets := make([]*assetStats, 0, len(byAsset))
	for _, stats := range byAsset {
		if closed := stats.WinningTrades + stats.LosingTrades; closed > 0 {
			stats.WinRate = float64(stats.WinningTrades) / float64(closed) * 100
			stats.AvgProfit = stats.TotalProfit / float64(closed)
		}
		assets = append(assets, stats)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].TotalProfit > assets[j].TotalProfit
	})

	fmt.Printf("\n%-12s %7s %6s %6s %8s %9s %12s %10s\n",
		"ASSET", "TRADES", "WINS", "LOSSES", "PENDING", "WIN RATE", "TOTAL P/L", "AVG P/L")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, stats := range assets {
		fmt.Printf("%-12s %7d %6d %6d %8d %8.1f%% %11.2f$ %9.2f$\n",
			stats.Asset, stats.TotalTrades, stats.WinningTrades, stats.LosingTrades,
			stats.PendingTrades, stats.WinRate, stats.TotalProfit, stats.AvgProfit)
	}

	fmt.Println("--------------------------------------------------------------------------------")
	overallRate := 0.0
	if settled > 0 {
		overallRate = float64(wins) / float64(settled) * 100
	}
	fmt.Printf("\n💰 Total P/L: $%.2f over %d settled trades (%.1f%% win rate)\n",
		totalProfit, settled, overallRate)
	fmt.Printf("📅 Window: last %d trades\n", len(trades))
}
