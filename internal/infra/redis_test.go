package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewRedisClientPings(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/2", WithPoolSize(2))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	if got := client.Options().PoolSize; got != 2 {
		t.Fatalf("expected pool size 2, got %d", got)
	}
	if err := client.Set(context.Background(), "otp:registration:ana@example.com", "123456", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.Select(2)
	if got, _ := mr.Get("otp:registration:ana@example.com"); got != "123456" {
		t.Fatalf("expected code in db 2, got %q", got)
	}
}

func TestNewRedisClientErrors(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewRedisClient(context.Background(), "postgres://nope"); err == nil {
		t.Fatal("expected error for a non-redis url")
	}
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisClient(context.Background(), "redis://"+addr); err == nil {
		t.Fatal("expected ping error for a stopped server")
	}
}
