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

	"veraguard-go/internal/common"
	"veraguard-go/internal/config"
	"veraguard-go/internal/history"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	limitFlag := flag.Int("limit", 20, "Maximum number of activity entries to show")
	offsetFlag := flag.Int("offset", 0, "Number of activity entries to skip")
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

	// The vault view is local only; no engine connection needed.
	historyService, err := common.InitializeStateOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open local state", zap.Error(err))
	}
	defer historyService.Close()

	records, err := historyService.ListActivity(ctx, *limitFlag, *offsetFlag)
	if err != nil {
		zap.L().Fatal("Failed to list activity", zap.Error(err))
	}

	common.PrintHeader("VAULT ACTIVITY", common.WideWidth)
	if len(records) == 0 {
		fmt.Println("  No activity recorded yet.")
	}
	for i, record := range records {
		printRecord(record, i == len(records)-1)
	}
	common.PrintFooter(fmt.Sprintf("%d entr(ies)", len(records)), common.WideWidth)
}

func printRecord(record history.ActivityRecord, isLast bool) {
	prefix := "│  "
	if isLast {
		prefix = "└  "
	}

	stamp := record.CreatedAt.Format("2006-01-02 15:04:05")
	switch record.Type {
	case history.ActivityAudit:
		score := "-"
		if record.Score != nil {
			score = fmt.Sprintf("%d", *record.Score)
		}
		fmt.Printf("%s%s  AUDIT     %-44s score=%s credits=%+d\n",
			prefix, stamp, record.Address, score, record.Credits)
	case history.ActivityPurchase:
		eth := ""
		if record.AmountEth.GreaterThan(decimal.Zero) {
			eth = fmt.Sprintf(" (%s ETH)", record.AmountEth.String())
		}
		fmt.Printf("%s%s  PURCHASE  %+d credits%s\n", prefix, stamp, record.Credits, eth)
	case history.ActivityReward:
		fmt.Printf("%s%s  REWARD    %+d credits  %s\n", prefix, stamp, record.Credits, record.Description)
	default:
		fmt.Printf("%s%s  %-9s %s\n", prefix, stamp, record.Type, record.Description)
	}
}
