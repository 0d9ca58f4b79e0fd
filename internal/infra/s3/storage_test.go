package s3

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewClientRequiresEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "  ", "https://"} {
		if _, err := NewClient(Config{Endpoint: endpoint}); err == nil {
			t.Fatalf("expected error for endpoint %q", endpoint)
		}
	}
}

func TestNewClientHonoursEndpointScheme(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "https://objects.example.com/", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := client.EndpointURL(); got.Scheme != "https" || got.Host != "objects.example.com" {
		t.Fatalf("unexpected endpoint: %s", got)
	}

	client, err = NewClient(Config{Endpoint: "http://localhost:9000", UseSSL: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := client.EndpointURL(); got.Scheme != "http" || got.Host != "localhost:9000" {
		t.Fatalf("explicit http scheme must win over use_ssl: %s", got)
	}
}

func TestStorageRejectsInvalidObjects(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "localhost:9000", AccessKey: "minio", SecretKey: "minio123"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	storage := NewStorage(client, " cursive-revenue ")
	if storage.Bucket() != "cursive-revenue" {
		t.Fatalf("bucket must be trimmed: %q", storage.Bucket())
	}

	if _, err := storage.PutJSON(context.Background(), "", []byte("{}")); !errors.Is(err, ErrInvalidObject) {
		t.Fatalf("expected ErrInvalidObject for empty key, got %v", err)
	}
	if _, err := storage.PutJSON(context.Background(), "snapshots/a.json", nil); !errors.Is(err, ErrInvalidObject) {
		t.Fatalf("expected ErrInvalidObject for empty body, got %v", err)
	}
}

func TestStoragePresignIsOffline(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "localhost:9000", AccessKey: "minio", SecretKey: "minio123", Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	storage := NewStorage(client, "cursive-revenue")

	link, err := storage.PresignGet(context.Background(), "snapshots/2026/10/20/a.json", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(link, "snapshots/2026/10/20/a.json") || !strings.Contains(link, "X-Amz-Signature") {
		t.Fatalf("unexpected presigned url: %s", link)
	}
}

func TestNilClientStorage(t *testing.T) {
	storage := NewStorage(nil, "cursive-revenue")
	if err := storage.EnsureBucket(context.Background()); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := storage.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("delete on nil client must be a no-op: %v", err)
	}
}
