package store

// Schema contains the complete DDL for the keybind tables.
const Schema = `
-- Key bindings: one key on a domain+path scope, pointing at one element
CREATE TABLE IF NOT EXISTS bindings (
    id          TEXT PRIMARY KEY,
    domain      TEXT NOT NULL,
    path        TEXT NOT NULL DEFAULT '',
    key         TEXT NOT NULL,
    selector    TEXT NOT NULL,
    locator     TEXT NOT NULL DEFAULT '',
    label       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    UNIQUE (domain, path, key)
);
CREATE INDEX IF NOT EXISTS idx_bindings_domain ON bindings(domain, path);

-- Disabled paths: domain-qualified scopes where bindings do not fire
CREATE TABLE IF NOT EXISTS disabled_paths (
    domain_path TEXT PRIMARY KEY,
    created_at  INTEGER NOT NULL
);
`
