package db

// schema is the registry's logical schema (spec.md §6 "Persistent schema").
// manifest_blobs is the sole source of truth for blob reachability; GC
// (internal/gc) relies on its foreign-key-free DELETE ... NOT IN queries
// running in the order documented there, so no FK constraints are declared
// here that would let Postgres enforce (and short-circuit) that ordering.
const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blobs (
	digest     TEXT PRIMARY KEY,
	size       BIGINT NOT NULL DEFAULT 0,
	media_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS manifests (
	repository TEXT NOT NULL,
	digest     TEXT NOT NULL,
	value      BYTEA NOT NULL,
	media_type TEXT NOT NULL DEFAULT '',
	size       BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (repository, digest)
);

CREATE TABLE IF NOT EXISTS tags (
	repository TEXT NOT NULL,
	name       TEXT NOT NULL,
	manifest   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (repository, name)
);

CREATE TABLE IF NOT EXISTS manifest_blobs (
	manifest TEXT NOT NULL,
	blob     TEXT NOT NULL,
	PRIMARY KEY (manifest, blob)
);
`
