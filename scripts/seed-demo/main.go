// seed-demo creates the customers/orders demo schema in a PostgreSQL
// database and fills it with a handful of rows, so a first discovery
// run has something to find:
//
//   - orders.customer_id carries a declared foreign key to customers.id,
//     so foreign-key screening yields one graph node and an inclusion
//     run reports orders[customer_id] <= customers[id].
//   - one customer has no orders, keeping the reciprocal containment
//     below 1.0.
//
// Usage: go run ./scripts/seed-demo
//
// Database connection: DATASOURCE_DSN environment variable, or the
// standard PG* variables when unset.
//
// Flags:
//
//	-drop   Drop the demo tables first (default: false)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

const dropDemo = `
DROP TABLE IF EXISTS orders;
DROP TABLE IF EXISTS customers;
`

const createDemo = `
CREATE TABLE IF NOT EXISTS customers (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    city TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER NOT NULL REFERENCES customers(id),
    amount NUMERIC(10,2) NOT NULL
);
`

const seedDemo = `
INSERT INTO customers (id, name, city) VALUES
    (1, 'Ada', 'Berlin'),
    (2, 'Grace', 'London'),
    (3, 'Edsger', 'Amsterdam'),
    (4, 'Barbara', 'Boston')
ON CONFLICT (id) DO NOTHING;

INSERT INTO orders (id, customer_id, amount) VALUES
    (10, 1, 99.90),
    (11, 2, 15.00),
    (12, 2, 42.50),
    (13, 3, 7.25)
ON CONFLICT (id) DO NOTHING;
`

func main() {
	drop := flag.Bool("drop", false, "Drop the demo tables before recreating them")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dsn := os.Getenv("DATASOURCE_DSN")
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if *drop {
		if _, err := conn.Exec(ctx, dropDemo); err != nil {
			fmt.Fprintf(os.Stderr, "drop demo tables: %v\n", err)
			os.Exit(1)
		}
	}
	if _, err := conn.Exec(ctx, createDemo); err != nil {
		fmt.Fprintf(os.Stderr, "create demo tables: %v\n", err)
		os.Exit(1)
	}
	if _, err := conn.Exec(ctx, seedDemo); err != nil {
		fmt.Fprintf(os.Stderr, "seed demo rows: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Demo schema ready: customers (4 rows), orders (4 rows)")
	fmt.Println("Try: sieve discover --kind ind --mode foreign_key")
}
