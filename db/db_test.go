package db

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestConnect_RejectsEmptyURL(t *testing.T) {
	if _, err := Connect(""); err == nil {
		t.Fatalf("Expected an error for an empty database URL")
	}
}

func TestConnect_RejectsMalformedURL(t *testing.T) {
	if _, err := Connect("not-a-postgres-url://%%%"); err == nil {
		t.Fatalf("Expected an error for a malformed database URL")
	}
}

func TestConnectOnce_ClosesPoolWhenPingFails(t *testing.T) {
	// A listener that drops every connection makes the ping fail after the
	// pool itself was created.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	url := fmt.Sprintf("postgres://user:pass@%s/db?sslmode=disable&connect_timeout=1", ln.Addr().String())
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := connectOnce(ctx, config)
	if err == nil {
		pool.Close()
		t.Fatalf("Expected a ping failure against a dead listener")
	}
	if pool != nil {
		t.Errorf("Expected no pool on ping failure, got %v", pool)
	}
}
