// Package sqlpoller extracts new rows from a relational database by polling
// it with a templated query whose time window is bounded by the database's
// own clock, and delivers every non-empty batch to a sink.
//
// # How a cycle works
//
// Every cycle reads the database time, computes the window upper bound and
// runs the extraction query with both bounds substituted:
//
//	SELECT * FROM orders WHERE updated_at >= $@$ AND updated_at < $#$
//
// $@$ is the cursor (the lower bound, inclusive) and $#$ the upper bound
// (exclusive). The upper bound is the smaller of cursor + step*attempt and
// now - safety_margin, so a window never reaches rows that may still be
// committing. When a window returns rows the cursor advances to the upper
// bound. When it returns nothing the next window grows by one step until it
// reaches the safety margin.
//
// Failures never stop the loop: the cycle yields no rows, the cursor stays
// where it was and the database session is reset before the next attempt.
//
// # Quick Start
//
//	name: orders
//	connection:
//	  driver: mysql
//	  dsn: ${ORDERS_DSN}
//	query:
//	  template: "SELECT * FROM orders WHERE ts >= $@$ AND ts < $#$"
//	window:
//	  step_seconds: 600
//	  safety_margin_seconds: 10
//	checkpoint:
//	  type: sqlite
//	  path: /var/lib/sqlpoller/checkpoints.db
//	sink:
//	  type: s3
//	  format: parquet
//	  s3:
//	    bucket: landing
//	    prefix: raw
//
// Run it with:
//
//	sqlpoller run --config orders.yaml
//
// # Key Packages
//
//	pkg/connector/sources/sqlpoll - Window arithmetic, session reset policy and the polling loop
//	pkg/connector/destinations    - stdout, file, Kafka, S3 and GCS sinks
//	pkg/formats/rows              - JSONL, CSV, Avro and Parquet batch encoders
//	pkg/compression               - gzip, snappy, lz4, zstd, s2 and deflate frames
//	pkg/checkpoint                - Memory, file and sqlite cursor stores
//	pkg/config                    - YAML configuration with environment overrides
//	pkg/errors                    - Structured error handling
//	pkg/logger                    - Structured logging
//	pkg/metrics                   - Prometheus metrics
//	internal/pipeline             - The scheduler driving source, sink and checkpoint
//
// # Supported databases
//
//   - MySQL (go-sql-driver/mysql)
//   - PostgreSQL (pgx or lib/pq)
//   - SQLite (modernc.org/sqlite)
//   - Snowflake (gosnowflake)
package sqlpoller
