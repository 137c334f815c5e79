package clickhouse

import "fmt"

// Tables owned by the service.
const (
	CandlesTable = "candles"
	SignalsTable = "signals"
)

// Schema returns the idempotent DDL for the candle history and signal
// history tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
        symbol    LowCardinality(String),
        timeframe UInt16,
        bucket    DateTime,
        open      Float64,
        high      Float64,
        low       Float64,
        close     Float64,
        volume    Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, timeframe, bucket)`, database, CandlesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
        id           String,
        generated_at DateTime64(3),
        symbol       LowCardinality(String),
        timeframe    UInt16,
        direction    LowCardinality(String),
        pattern      LowCardinality(String),
        entry_price  Float64,
        entry_time   DateTime,
        expiry_time  DateTime,
        confidence   Float64,
        confluences  Array(String),
        synthetic    UInt8
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMM(generated_at)
    ORDER BY (symbol, generated_at)`, database, SignalsTable),
	}
}
