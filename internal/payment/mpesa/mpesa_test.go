package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidatePhone(t *testing.T) {
	valid := []string{"0712345678", "0799999999"}
	for _, phone := range valid {
		if err := ValidatePhone(phone); err != nil {
			t.Fatalf("expected %s to be valid, got %v", phone, err)
		}
	}
	invalid := []string{"", "0612345678", "071234567", "07123456789", "+254712345678", "07abcdefgh"}
	for _, phone := range invalid {
		if err := ValidatePhone(phone); !errors.Is(err, ErrPhoneInvalid) {
			t.Fatalf("expected %q to be rejected, got %v", phone, err)
		}
	}
}

func TestSTKPushSendsPhoneAndAmount(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body failed: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":"STK push sent","CheckoutRequestID":"ws_CO_1"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	result, err := client.STKPush(context.Background(), STKPushInput{
		PhoneNumber: "0712345678",
		Amount:      decimal.RequireFromString("75.6"),
	})
	if err != nil {
		t.Fatalf("stk push failed: %v", err)
	}
	if got["phoneNumber"] != "0712345678" {
		t.Fatalf("unexpected phone in body: %v", got["phoneNumber"])
	}
	if got["amount"] != 75.6 {
		t.Fatalf("unexpected amount in body: %v", got["amount"])
	}
	if result.Message != "STK push sent" || result.CheckoutID != "ws_CO_1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSTKPushAcceptsPlainTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Success. Request accepted for processing"))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL})
	result, err := client.STKPush(context.Background(), STKPushInput{
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("stk push failed: %v", err)
	}
	if result.Message != "Success. Request accepted for processing" || result.Raw != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSTKPushInvalidPhoneNeverSent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL})
	_, err := client.STKPush(context.Background(), STKPushInput{
		PhoneNumber: "12345",
		Amount:      decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("expected ErrPhoneInvalid, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("invalid phone must not reach the gateway")
	}
}

func TestSTKPushNon2xxIsRequestFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL})
	_, err := client.STKPush(context.Background(), STKPushInput{
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}
