/**
 * Copyright 2025-present VeraGuard Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veraguard-go/internal/common"
	"veraguard-go/internal/config"
	"veraguard-go/internal/models"
	"veraguard-go/internal/notify"

	"go.uber.org/zap"
)

func main() {
	leadsFlag := flag.Bool("leads", false, "Print the priority leads feed on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	zap.L().Info("Starting VeraGuard watch")

	if *leadsFlag {
		printLeads(ctx, services)
	}

	services.Mirror.Refresh(ctx, services.Session.UserId())
	services.Quotes.Start(ctx)
	defer services.Quotes.Stop()

	services.Bridge.Start(ctx)
	defer services.Bridge.Stop()

	zap.L().Info("Watching for balance, quote and live events. Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case n, ok := <-services.Hub.Notifications():
			if !ok {
				return
			}
			printNotification(n)
		case <-sigChan:
			zap.L().Info("Shutdown signal received, stopping watch")
			return
		case <-ctx.Done():
			return
		}
	}
}

func printNotification(n notify.Notification) {
	stamp := n.At.Format("15:04:05")
	switch n.Category {
	case notify.CategoryBalance:
		if n.Balance != nil {
			fmt.Printf("[%s] balance: %d credits (member=%v)\n", stamp, n.Balance.Credits, n.Balance.IsMember)
		}
	case notify.CategoryQuote:
		if n.Quote != nil {
			fmt.Printf("[%s] quote: %s ETH/credit, valid %ds\n",
				stamp, n.Quote.AmountEthPerCredit.String(), int(n.Quote.TimeLeft(time.Now()).Seconds()))
		}
	case notify.CategoryLive:
		if n.Event != nil {
			printLiveEvent(stamp, n.Event)
		}
	}
}

func printLiveEvent(stamp string, event *models.LiveEvent) {
	switch event.Tag {
	case models.EventContractDetected:
		fmt.Printf("[%s] ⚡ contract detected: %s\n", stamp, event.Address)
	case models.EventIntelligenceUpdate:
		fmt.Printf("[%s] 🧠 intelligence: %s\n", stamp, event.Heuristic)
	case models.EventBrainDiscovery:
		fmt.Printf("[%s] 💡 discovery: %s\n", stamp, event.Message)
	case models.EventSpoofAlert:
		fmt.Printf("[%s] ⚠ spoof alert: %s %s\n", stamp, event.Address, event.Message)
	default:
		fmt.Printf("[%s] %s: %s\n", stamp, event.Tag, event.Message)
	}
}

func printLeads(ctx context.Context, services *common.Services) {
	leads, err := services.Engine.GetLeads(ctx, services.Session.UserId())
	if err != nil {
		zap.L().Warn("Failed to fetch leads feed", zap.Error(err))
		return
	}
	if len(leads) == 0 {
		return
	}
	common.PrintHeader("PRIORITY LEADS", common.DefaultWidth)
	for _, lead := range leads {
		fmt.Printf("  %-44s %-8s %s\n", lead.Address, lead.Risk, lead.Status)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
