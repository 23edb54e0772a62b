package sqlite

const schema = `
-- Tickets table
CREATE TABLE IF NOT EXISTS tickets (
    key TEXT PRIMARY KEY,
    summary TEXT NOT NULL CHECK(length(summary) <= 255),
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'open',
    severity TEXT NOT NULL DEFAULT '',
    error_type TEXT NOT NULL DEFAULT '',
    log_excerpt TEXT NOT NULL DEFAULT '',
    resolution TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    closed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at);

-- Labels table
CREATE TABLE IF NOT EXISTS labels (
    ticket_key TEXT NOT NULL,
    label TEXT NOT NULL,
    PRIMARY KEY (ticket_key, label),
    FOREIGN KEY (ticket_key) REFERENCES tickets(key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_labels_label ON labels(label);

-- Comments table
CREATE TABLE IF NOT EXISTS comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_key TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (ticket_key) REFERENCES tickets(key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_comments_ticket ON comments(ticket_key, created_at);

-- Links table ("relates to")
CREATE TABLE IF NOT EXISTS links (
    ticket_key TEXT NOT NULL,
    related_key TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (ticket_key, related_key),
    FOREIGN KEY (ticket_key) REFERENCES tickets(key) ON DELETE CASCADE,
    FOREIGN KEY (related_key) REFERENCES tickets(key) ON DELETE CASCADE
);

-- Events table (history of every mutation)
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_key TEXT NOT NULL,
    event_type TEXT NOT NULL CHECK(event_type IN ('created', 'commented', 'closed', 'linked')),
    detail TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    FOREIGN KEY (ticket_key) REFERENCES tickets(key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_ticket ON events(ticket_key);

-- Per-project key counters
CREATE TABLE IF NOT EXISTS ticket_counters (
    project TEXT PRIMARY KEY,
    last_id INTEGER NOT NULL DEFAULT 0
);
`
