package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	billingdomain "github.com/glowpress/keyline/internal/billing/domain"
)

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", timestamp, payload)))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	adapter := &Adapter{webhookSecret: secret}

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildSignatureHeader(secret, payload, timestamp))
	if err := adapter.Verify(context.Background(), payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildSignatureHeader("wrong", payload, timestamp))
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, billingdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}

	reqHeader.Del("Stripe-Signature")
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, billingdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error for missing header, got %v", err)
	}
}

func TestParseSubscriptionEvents(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}
	periodEnd := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payload  string
		wantType billingdomain.EventType
		wantErr  error
	}{{
		name: "active subscription",
		payload: fmt.Sprintf(`{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{
			"id":"sub_1","status":"active","current_period_end":%d,
			"metadata":{"license_key":"GLOW-AAAA-BBBB-CCCC-DDDD","plan":"pro"}}}}`, periodEnd.Unix()),
		wantType: billingdomain.EventSubscriptionActive,
	}, {
		name: "trialing counts as active",
		payload: `{"id":"evt_2","type":"customer.subscription.created","data":{"object":{
			"id":"sub_2","status":"trialing","metadata":{"license_key":"GLOW-AAAA-BBBB-CCCC-DDDD"}}}}`,
		wantType: billingdomain.EventSubscriptionActive,
	}, {
		name: "unpaid maps to cancelled",
		payload: `{"id":"evt_3","type":"customer.subscription.updated","data":{"object":{
			"id":"sub_3","status":"unpaid","metadata":{"license_key":"GLOW-AAAA-BBBB-CCCC-DDDD"}}}}`,
		wantType: billingdomain.EventSubscriptionCancelled,
	}, {
		name: "deleted subscription",
		payload: `{"id":"evt_4","type":"customer.subscription.deleted","data":{"object":{
			"id":"sub_4","status":"canceled","metadata":{"license_key":"GLOW-AAAA-BBBB-CCCC-DDDD"}}}}`,
		wantType: billingdomain.EventSubscriptionCancelled,
	}, {
		name:    "unrelated event type ignored",
		payload: `{"id":"evt_5","type":"invoice.paid","data":{"object":{}}}`,
		wantErr: billingdomain.ErrEventIgnored,
	}, {
		name: "missing license key",
		payload: `{"id":"evt_6","type":"customer.subscription.updated","data":{"object":{
			"id":"sub_6","status":"active","metadata":{}}}}`,
		wantErr: billingdomain.ErrInvalidEvent,
	}, {
		name: "paused status ignored",
		payload: `{"id":"evt_7","type":"customer.subscription.updated","data":{"object":{
			"id":"sub_7","status":"paused","metadata":{"license_key":"GLOW-AAAA-BBBB-CCCC-DDDD"}}}}`,
		wantErr: billingdomain.ErrEventIgnored,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := adapter.Parse(context.Background(), []byte(tc.payload))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if event.Type != tc.wantType {
				t.Fatalf("expected event type %s, got %s", tc.wantType, event.Type)
			}
			if event.LicenseKey != "GLOW-AAAA-BBBB-CCCC-DDDD" {
				t.Fatalf("unexpected license key %q", event.LicenseKey)
			}
		})
	}
}

func TestParseCarriesPeriodEnd(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}
	periodEnd := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	payload := fmt.Sprintf(`{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_1","status":"active","current_period_end":%d,
		"metadata":{"license_key":"GLOW-AAAA-BBBB-CCCC-DDDD","plan":"team"}}}}`, periodEnd.Unix())

	event, err := adapter.Parse(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Plan != "team" {
		t.Fatalf("expected plan team, got %q", event.Plan)
	}
	if event.ExpiresAt == nil || !event.ExpiresAt.Equal(periodEnd) {
		t.Fatalf("expected expiry %v, got %v", periodEnd, event.ExpiresAt)
	}
}
