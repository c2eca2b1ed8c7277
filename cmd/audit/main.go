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
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"veraguard-go/internal/audit"
	"veraguard-go/internal/common"
	"veraguard-go/internal/config"
	"veraguard-go/internal/engine"
	"veraguard-go/internal/triage"

	"go.uber.org/zap"
)

func main() {
	addressFlag := flag.String("address", "", "Contract address to audit (required unless --report)")
	reauditFlag := flag.Bool("reaudit", false, "Bypass local history and force a fresh audit")
	approveDeepFlag := flag.Bool("approve-deep", false, "Auto-approve deep tier upgrades without prompting")
	bypassDeepFlag := flag.Bool("bypass-deep", false, "Decline deep tier upgrades and run standard without prompting")
	reportFlag := flag.String("report", "", "View a shared report by id instead of auditing")
	refFlag := flag.String("ref", "", "Inbound referral code to attribute with --report")
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

	if *reportFlag != "" {
		viewSharedReport(ctx, services, *reportFlag, *refFlag)
		return
	}

	address := strings.TrimSpace(*addressFlag)
	if address == "" {
		fmt.Println("Usage: audit --address 0x... [--reaudit] [--approve-deep | --bypass-deep]")
		os.Exit(1)
	}
	if err := triage.ValidateAddress(address); err != nil {
		zap.L().Fatal("Invalid target", zap.Error(err))
	}
	if *approveDeepFlag && *bypassDeepFlag {
		zap.L().Fatal("--approve-deep and --bypass-deep are mutually exclusive")
	}

	services.Mirror.Refresh(ctx, services.Session.UserId())
	if balance, synced := services.Mirror.Current(); synced {
		common.PrintBalance(&balance, synced)
	}

	var result *audit.Result
	if *reauditFlag {
		result, err = services.Audit.Reaudit(ctx, address)
	} else {
		result, err = services.Audit.Submit(ctx, address)
	}
	result, err = resolveDecisions(ctx, services, result, err, *approveDeepFlag, *bypassDeepFlag)
	if err != nil {
		exitWithAuditError(err)
	}

	switch result.Kind {
	case audit.ResultRecalled:
		fmt.Println("\nReplayed from your audit history. No credits spent.")
		common.PrintReport(result.Report)
	case audit.ResultProxyReaudit:
		fmt.Println("\nThis contract is a proxy and its logic may have changed since your last scan.")
		fmt.Println("Run again with --reaudit to pay for a fresh analysis.")
	case audit.ResultReport:
		common.PrintReport(result.Report)
	}

	if balance, synced := services.Mirror.Current(); synced {
		common.PrintBalance(&balance, synced)
	}
}

// resolveDecisions walks the interactive decision points: pre-flight triage
// recommendations and mid-flight escalations.
func resolveDecisions(ctx context.Context, services *common.Services, result *audit.Result, err error, autoApprove, autoBypass bool) (*audit.Result, error) {
	for err == nil && result != nil {
		switch result.Kind {
		case audit.ResultTriageDeep:
			fmt.Println("\nPre-flight triage recommends a DEEP audit for this contract:")
			if result.Classification != nil {
				fmt.Printf("  %s (bytecode: %d bytes)\n", result.Classification.Reason, result.Classification.BytecodeSize)
			}
			if decide(autoApprove, autoBypass, "Run deep audit?") {
				result, err = services.Audit.ConfirmTriageDeep(ctx)
			} else {
				fmt.Println("Running standard tier. Deep-dive findings will not be included.")
				result, err = services.Audit.BypassTriage(ctx)
			}
		case audit.ResultApprovalPending:
			pending := services.Audit.Pending()
			fmt.Printf("\nThe engine flagged %s as requiring a DEEP audit (higher credit cost).\n", pending.TargetAddress)
			if decide(autoApprove, autoBypass, "Approve the upgrade?") {
				result, err = services.Audit.ApproveDeepDive(ctx)
			} else {
				result, err = services.Audit.DeclineDeepDive(ctx)
			}
		default:
			return result, nil
		}
	}
	return result, err
}

func decide(autoApprove, autoBypass bool, prompt string) bool {
	if autoApprove {
		return true
	}
	if autoBypass {
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func viewSharedReport(ctx context.Context, services *common.Services, reportId, refCode string) {
	result, err := services.Engine.GetLiveReport(ctx, reportId, refCode)
	if err != nil {
		zap.L().Fatal("Failed to fetch shared report", zap.String("report_id", reportId), zap.Error(err))
	}
	if result.ReferralMsg != "" {
		fmt.Printf("\n%s\n", result.ReferralMsg)
	}
	common.PrintReport(result.Report)
}

func exitWithAuditError(err error) {
	switch {
	case errors.Is(err, engine.ErrInsufficientCredits):
		fmt.Println("\nNot enough credits for this audit. Top up with the topup command.")
	case errors.Is(err, engine.ErrVaultHalted):
		fmt.Println("\nThe audit vault is temporarily halted. Please try again later.")
	default:
		fmt.Println("\nAudit failed. Please try again.")
	}
	zap.L().Error("Audit did not complete", zap.Error(err))
	os.Exit(1)
}
