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

// Package triage classifies an audit target before any credits are spent, so
// the user commits to a price knowing the tier up front. The classification
// is a hint only: the engine's mid-flight requires_approval signal stays
// authoritative.
package triage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"veraguard-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrInvalidAddress rejects syntactically malformed targets before any
// network call.
var ErrInvalidAddress = errors.New("not a valid contract address")

// DeepDiveSizeThreshold is the deployed bytecode size above which the deep
// tier is recommended, matching the EIP-170 contract size limit.
const DeepDiveSizeThreshold = 24576

// eip1167Prefix is the minimal-proxy bytecode prefix.
var eip1167Prefix = common.Hex2Bytes("363d3d373d3d3d363d73")

// eip1967ImplSlot is keccak256("eip1967.proxy.implementation") - 1.
var eip1967ImplSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")

// ChainReader is the slice of the eth client the classifier needs.
// *ethclient.Client satisfies it.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

var _ ChainReader = (*ethclient.Client)(nil)

// Classification is the pre-flight verdict for a target.
type Classification struct {
	// Known reports whether the probe produced a usable verdict. When false
	// the flow proceeds straight to submission: the tier was not knowable
	// before spend.
	Known        bool
	Tier         models.Tier
	IsProxy      bool
	BytecodeSize int
	Reason       string
}

// Classifier probes a target's deployed bytecode over an optional RPC
// endpoint.
type Classifier struct {
	reader  ChainReader
	timeout time.Duration
}

// NewClassifier dials the chain RPC endpoint. An empty URL disables probing;
// classification then reports not-knowable and the flow submits directly.
func NewClassifier(cfg models.ChainConfig) (*Classifier, error) {
	if cfg.RPCURL == "" {
		zap.L().Info("No chain RPC configured, pre-flight triage disabled")
		return &Classifier{timeout: cfg.ProbeTimeout}, nil
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("unable to dial chain RPC %s: %w", cfg.RPCURL, err)
	}

	zap.L().Info("Pre-flight triage enabled", zap.String("rpc_url", cfg.RPCURL))
	return &Classifier{reader: client, timeout: cfg.ProbeTimeout}, nil
}

// NewClassifierWithReader wires an explicit reader; used by tests.
func NewClassifierWithReader(reader ChainReader, timeout time.Duration) *Classifier {
	return &Classifier{reader: reader, timeout: timeout}
}

// ValidateAddress rejects targets that cannot be a contract address.
func ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// Classify probes the target and recommends a tier. Probe failures degrade to
// a not-knowable classification rather than blocking the audit.
func (c *Classifier) Classify(ctx context.Context, address string) (*Classification, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if c.reader == nil {
		return &Classification{Known: false, Tier: models.TierStandard, Reason: "no chain endpoint configured"}, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := common.HexToAddress(address)
	code, err := c.reader.CodeAt(ctx, target, nil)
	if err != nil {
		zap.L().Warn("Bytecode probe failed, proceeding without triage",
			zap.String("address", address),
			zap.Error(err))
		return &Classification{Known: false, Tier: models.TierStandard, Reason: "bytecode probe failed"}, nil
	}

	result := &Classification{
		Known:        true,
		Tier:         models.TierStandard,
		BytecodeSize: len(code),
		Reason:       "standard contract schema",
	}

	if isProxy, reason := c.detectProxy(ctx, target, code); isProxy {
		result.IsProxy = true
		result.Tier = models.TierDeep
		result.Reason = reason
		return result, nil
	}

	if len(code) > DeepDiveSizeThreshold {
		result.Tier = models.TierDeep
		result.Reason = fmt.Sprintf("high bytecode complexity (%d bytes > %d)", len(code), DeepDiveSizeThreshold)
	}
	return result, nil
}

func (c *Classifier) detectProxy(ctx context.Context, target common.Address, code []byte) (bool, string) {
	if bytes.HasPrefix(code, eip1167Prefix) {
		return true, "EIP-1167 minimal proxy detected (logic upgradability)"
	}

	slot, err := c.reader.StorageAt(ctx, target, eip1967ImplSlot, nil)
	if err != nil {
		zap.L().Debug("Proxy slot probe failed", zap.String("address", target.Hex()), zap.Error(err))
		return false, ""
	}
	if len(slot) > 0 && common.BytesToHash(slot) != (common.Hash{}) {
		return true, "EIP-1967 proxy slot populated (logic upgradability)"
	}
	return false, ""
}

// CreditCost returns the displayed credit cost of running tier for this user.
// The engine performs the authoritative deduction.
func CreditCost(tier models.Tier, isMember bool, standardCost, standardMemberCost, deepCost, deepMemberCost int) int {
	if tier == models.TierDeep {
		if isMember {
			return deepMemberCost
		}
		return deepCost
	}
	if isMember {
		return standardMemberCost
	}
	return standardCost
}
