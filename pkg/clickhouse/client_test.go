package clickhouse

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch.internal",
		Port:         9000,
		Database:     "scans",
		User:         "scanner",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		MaxExecTime:  time.Minute,
		AsyncInsert:  true,
		WaitForAsync: true,
	})
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.internal:9000" || u.Path != "/scans" {
		t.Fatalf("dsn = %q", dsn)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "scanner" || pw != "p@ss" {
		t.Fatalf("credentials lost in %q", dsn)
	}
	q := u.Query()
	want := map[string]string{
		"dial_timeout":          "5s",
		"read_timeout":          "30s",
		"max_execution_time":    "60",
		"async_insert":          "1",
		"wait_for_async_insert": "1",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
	if q.Has("write_timeout") {
		t.Fatalf("write_timeout must stay client side")
	}

	httpDSN := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true})
	if !strings.HasPrefix(httpDSN, "http://") || strings.Contains(httpDSN, "async_insert") {
		t.Fatalf("http dsn = %q", httpDSN)
	}
}

func TestSchemaUsesDatabase(t *testing.T) {
	stmts := Schema("scans")
	if len(stmts) != 3 {
		t.Fatalf("statements = %d", len(stmts))
	}
	if stmts[0] != "CREATE DATABASE IF NOT EXISTS scans" {
		t.Fatalf("database ddl = %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "scans.candles") || !strings.Contains(stmts[2], "scans.signals") {
		t.Fatalf("tables not qualified with the database")
	}
	if got := (&Client{database: "scans"}).Table(SignalsTable); got != "scans.signals" {
		t.Fatalf("table = %q", got)
	}
}
