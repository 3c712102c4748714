// Dev bootstrap: creates the schema and seeds a small catalog so the payment
// flow can be exercised locally. Production schema management lives elsewhere.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ai-saas-billing/internal/config"
	pg "ai-saas-billing/internal/infra/db/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	phone      TEXT
);

CREATE TABLE IF NOT EXISTS plans (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	kind               TEXT NOT NULL,
	price_krw          BIGINT NOT NULL,
	token_grant        BIGINT NOT NULL,
	billing_cycle_days INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS payment_intents (
	id           TEXT PRIMARY KEY,
	merchant_uid TEXT NOT NULL UNIQUE,
	user_id      TEXT NOT NULL,
	plan_id      TEXT NOT NULL,
	coupon_id    TEXT,
	kind         TEXT NOT NULL,
	provider     TEXT NOT NULL,
	method       TEXT,
	base_amount  BIGINT NOT NULL,
	amount       BIGINT NOT NULL,
	external_ref TEXT,
	billing_key  TEXT,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_intents_status_expiry ON payment_intents (status, expires_at);

CREATE TABLE IF NOT EXISTS payments (
	id               TEXT PRIMARY KEY,
	payment_number   TEXT NOT NULL UNIQUE,
	external_id      TEXT NOT NULL UNIQUE,
	merchant_uid     TEXT NOT NULL UNIQUE,
	user_id          TEXT NOT NULL,
	plan_id          TEXT NOT NULL,
	subscription_id  TEXT,
	coupon_id        TEXT,
	provider         TEXT NOT NULL,
	amount           BIGINT NOT NULL,
	tokens_purchased BIGINT NOT NULL,
	status           TEXT NOT NULL,
	paid_at          TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_subscription ON payments (subscription_id, status, created_at);

CREATE TABLE IF NOT EXISTS subscriptions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	plan_id           TEXT NOT NULL,
	provider          TEXT NOT NULL,
	billing_key       TEXT NOT NULL,
	status            TEXT NOT NULL,
	next_billing_date TIMESTAMPTZ NOT NULL,
	failure_count     INT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	cancelled_at      TIMESTAMPTZ
);
-- one live subscription per user, enforced by the database
CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_live_user
	ON subscriptions (user_id) WHERE status IN ('active', 'past_due');
CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions (status, next_billing_date);

CREATE TABLE IF NOT EXISTS coupons (
	id             TEXT PRIMARY KEY,
	code           TEXT NOT NULL UNIQUE,
	discount_type  TEXT NOT NULL,
	discount_value BIGINT NOT NULL,
	valid_from     TIMESTAMPTZ NOT NULL,
	valid_to       TIMESTAMPTZ NOT NULL,
	max_usage      BIGINT NOT NULL DEFAULT 0,
	used_count     BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_coupons (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	coupon_id   TEXT NOT NULL,
	payment_id  TEXT,
	redeemed_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, coupon_id)
);

CREATE TABLE IF NOT EXISTS inquiries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	body       TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS refunds (
	id           TEXT PRIMARY KEY,
	inquiry_id   TEXT NOT NULL UNIQUE,
	payment_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	amount       BIGINT NOT NULL,
	reason       TEXT,
	status       TEXT NOT NULL,
	admin_note   TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ,
	processed_by TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
-- at most one open refund per payment
CREATE UNIQUE INDEX IF NOT EXISTS uq_refunds_pending_payment
	ON refunds (payment_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS token_balances (
	user_id    TEXT PRIMARY KEY,
	balance    BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	planRepo := pg.NewPlanRepo(pool)
	if plans, err := planRepo.ListAll(ctx); err == nil && len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		return
	}

	seedPlans := []struct {
		ID, Name, Kind string
		Price, Tokens  int64
		CycleDays      int
	}{
		{"plan-token-1k", "Token Pack 1K", "token", 10_000, 1_000, 0},
		{"plan-token-12k", "Token Pack 12K", "token", 100_000, 12_000, 0},
		{"plan-sub-basic", "Basic Monthly", "subscription", 29_000, 5_000, 30},
		{"plan-sub-pro", "Pro Monthly", "subscription", 99_000, 30_000, 30},
	}
	for _, p := range seedPlans {
		if _, err := pool.Exec(ctx,
			`INSERT INTO plans (id, name, kind, price_krw, token_grant, billing_cycle_days) VALUES ($1,$2,$3,$4,$5,$6)`,
			p.ID, p.Name, p.Kind, p.Price, p.Tokens, p.CycleDays); err != nil {
			log.Fatalf("seed plan %s: %v", p.ID, err)
		}
		fmt.Printf("  - %s (%s, %d KRW)\n", p.Name, p.Kind, p.Price)
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO coupons (id, code, discount_type, discount_value, valid_from, valid_to, max_usage)
		 VALUES ($1,$2,$3,$4,NOW(),NOW() + INTERVAL '30 days',$5)
		 ON CONFLICT (code) DO NOTHING`,
		"coupon-welcome10", "WELCOME10", "rate", 10, 100); err != nil {
		log.Fatalf("seed coupon: %v", err)
	}
	fmt.Println("  - WELCOME10 (10% off, 100 uses)")
}
