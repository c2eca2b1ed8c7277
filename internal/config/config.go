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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"veraguard-go/internal/models"
)

func Load() (*models.Config, error) {
	requestTimeout, err := getEnvDuration("ENGINE_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	probeTimeout, err := getEnvDuration("CHAIN_PROBE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	standardFloor, err := getEnvDuration("AUDIT_STANDARD_FLOOR", 2500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	deepFloor, err := getEnvDuration("AUDIT_DEEP_FLOOR", 6*time.Second)
	if err != nil {
		return nil, err
	}

	receiptDuration, err := getEnvDuration("RECEIPT_DURATION", 6*time.Second)
	if err != nil {
		return nil, err
	}

	reconnectInterval, err := getEnvDuration("LIVE_RECONNECT_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	dialTimeout, err := getEnvDuration("LIVE_DIAL_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Engine: models.EngineConfig{
			BaseURL:        getEnvString("ENGINE_BASE_URL", "http://localhost:8000"),
			RequestTimeout: requestTimeout,
		},
		Chain: models.ChainConfig{
			RPCURL:       getEnvString("CHAIN_RPC_URL", ""),
			ProbeTimeout: probeTimeout,
		},
		State: models.StateConfig{
			Path:            getEnvString("STATE_DB_PATH", "veraguard.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Flow: models.FlowConfig{
			StandardAnalysisFloor: standardFloor,
			DeepAnalysisFloor:     deepFloor,
			ReceiptDuration:       receiptDuration,
			BundlesFile:           getEnvString("BUNDLES_FILE", "bundles.yaml"),
		},
		Live: models.LiveConfig{
			ReconnectInterval: reconnectInterval,
			DialTimeout:       dialTimeout,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
