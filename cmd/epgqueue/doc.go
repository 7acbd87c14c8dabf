// Package main hosts the epgqueue entrypoint.
//
// Pipeline overview:
//   - Discovery: CHANNELS_PATH (default sites/**/*.channels.xml) is expanded into a sorted list of
//     channel lists. Each list names its site; the site's <site>.config.js decides whether it is ignored.
//   - Expansion: every channel whose xmltv_id exists in the channel catalog becomes one item per day,
//     keyed by site:site_id:lang:date. Repeated appearances only add their <region>/<site> group.
//     Unknown ids are appended to LOGS_DIR/errors/<region>/<site>.log as CRLF-terminated JSON lines.
//   - Clustering: items are shuffled and split into --max-clusters parts whose sizes differ by at most
//     one, then sorted by xmltv_id and date.
//   - Persistence: the store (file, postgres, redis or memory) is reset and reloaded in one step.
//     Optionally the queue is exported as NDJSON (local or GCS) and one cluster-ready message per
//     non-empty cluster is published to Pub/Sub.
//
// Quick checklist:
//   - Configure env vars: CHANNELS_PATH, LOGS_DIR, and EPG_* for everything else (EPG_STORE_BACKEND,
//     EPG_STORE_POSTGRES_DSN, EPG_CATALOG_SOURCE, EPG_METRICS_PUSHGATEWAY_URL, ...).
//   - Run locally: go run ./cmd/epgqueue create-queue --max-clusters 8 --days 2
package main
