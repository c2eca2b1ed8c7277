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

	"go.uber.org/zap"
)

func main() {
	createFlag := flag.Bool("create", false, "Create a referral code if you do not have one")
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

	userId := services.Session.UserId()

	if *createFlag {
		code, err := services.Engine.CreateReferralCode(ctx, userId)
		if err != nil {
			zap.L().Fatal("Failed to create referral code", zap.Error(err))
		}
		fmt.Printf("\nYour referral code: %s\n", code)
		fmt.Println("Share it on a purchase or report link; rewards land automatically.")
		return
	}

	stats, err := services.Engine.GetReferralStats(ctx, userId)
	if err != nil {
		zap.L().Fatal("Failed to fetch referral stats", zap.Error(err))
	}

	common.PrintHeader("REFERRALS", common.DefaultWidth)
	if stats.Code == "" {
		fmt.Println("  No referral code yet. Run with --create to get one.")
	} else {
		fmt.Printf("  Code:    %s\n", stats.Code)
		fmt.Printf("  Uses:    %d\n", stats.Uses)
		fmt.Printf("  Earned:  %d credits\n", stats.EarnedCredits)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
