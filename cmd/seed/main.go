// Command seed creates the schema when it is missing and loads the sample
// catalog into an empty database. Safe to re-run.
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ovenfresh/storefront/internal/catalog"
	"github.com/ovenfresh/storefront/internal/config"
	"github.com/ovenfresh/storefront/internal/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       NUMERIC(10,2) NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	stock       INT NOT NULL CHECK (stock >= 0),
	available   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id               UUID PRIMARY KEY,
	customer_name    TEXT NOT NULL,
	customer_email   TEXT NOT NULL,
	customer_phone   TEXT NOT NULL,
	shipping_address TEXT NOT NULL,
	payment_method   TEXT NOT NULL,
	total_amount     NUMERIC(12,2) NOT NULL,
	status           TEXT NOT NULL,
	payment_ref      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_email ON orders(customer_email, created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
	id           UUID PRIMARY KEY,
	order_id     UUID NOT NULL REFERENCES orders(id),
	position     INT NOT NULL,
	product_id   UUID NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
	product_name TEXT NOT NULL,
	quantity     INT NOT NULL CHECK (quantity >= 1),
	unit_price   NUMERIC(10,2) NOT NULL,
	subtotal     NUMERIC(12,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id, position);
`

func sampleProducts() []catalog.Product {
	mk := func(name, desc, price, category, image string, stock int) catalog.Product {
		return catalog.Product{
			Name:        name,
			Description: desc,
			Price:       decimal.RequireFromString(price),
			Category:    category,
			ImageURL:    image,
			Stock:       stock,
			Available:   true,
		}
	}
	return []catalog.Product{
		mk("Chocolate Fudge Cake", "Rich chocolate cake with layers of velvety chocolate fudge frosting",
			"45.99", "Chocolate", "https://images.unsplash.com/photo-1578985545062-69928b1d9587?w=500", 20),
		mk("Strawberry Shortcake", "Light and fluffy vanilla cake with fresh strawberries and whipped cream",
			"39.99", "Fruit", "https://images.unsplash.com/photo-1565958011703-44f9829ba187?w=500", 15),
		mk("Red Velvet Cake", "Classic red velvet cake with cream cheese frosting",
			"42.99", "Classic", "https://images.unsplash.com/photo-1586985289688-ca3cf47d3e6e?w=500", 18),
		mk("Lemon Drizzle Cake", "Zesty lemon cake with tangy lemon glaze",
			"35.99", "Citrus", "https://images.unsplash.com/photo-1519915028121-7d3463d20b13?w=500", 25),
		mk("Carrot Cake", "Moist carrot cake with cream cheese frosting and walnuts",
			"38.99", "Classic", "https://images.unsplash.com/photo-1621303837174-89787a7d4729?w=500", 12),
		mk("Black Forest Cake", "Chocolate sponge cake with cherries and whipped cream",
			"48.99", "Chocolate", "https://images.unsplash.com/photo-1606313564200-e75d5e30476c?w=500", 10),
		mk("Vanilla Birthday Cake", "Classic vanilla cake perfect for celebrations",
			"36.99", "Classic", "https://images.unsplash.com/photo-1558636508-e0db3814bd1d?w=500", 30),
		mk("Tiramisu Cake", "Italian coffee-flavored cake with mascarpone cream",
			"52.99", "Specialty", "https://images.unsplash.com/photo-1571877227200-a0d98ea607e9?w=500", 8),
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(ctx, schema); err != nil {
		log.Fatalf("schema: %v", err)
	}

	repo := &catalog.Repo{DB: db}
	n, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("count products: %v", err)
	}
	if n > 0 {
		log.Printf("catalog already has %d products, nothing to do", n)
		return
	}

	for _, p := range sampleProducts() {
		if err := repo.Create(ctx, &p); err != nil {
			log.Fatalf("seed %q: %v", p.Name, err)
		}
	}
	log.Printf("seeded %d products", len(sampleProducts()))
}
