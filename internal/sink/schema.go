package sink

// Schema creates the result tables. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS screentime_runs (
    id                      UUID PRIMARY KEY,
    source                  TEXT NOT NULL,
    started_at              TIMESTAMPTZ NOT NULL,
    finished_at             TIMESTAMPTZ,
    bucket_length           BIGINT NOT NULL,
    gap_threshold           BIGINT NOT NULL,
    short_session_threshold BIGINT NOT NULL,
    max_session_duration    BIGINT NOT NULL,
    study_start             BIGINT NOT NULL,
    study_end               BIGINT NOT NULL,
    subjects                INTEGER NOT NULL DEFAULT 0,
    failed_subjects         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS screentime_rows (
    run_id            UUID NOT NULL REFERENCES screentime_runs(id) ON DELETE CASCADE,
    subject           TEXT NOT NULL,
    bucket_id         BIGINT NOT NULL,
    timebin_start     BIGINT NOT NULL,
    screentime        BIGINT NOT NULL,
    screentime_short  BIGINT NOT NULL,
    screentime_long   BIGINT NOT NULL,
    screencount       BIGINT NOT NULL,
    screencount_short BIGINT NOT NULL,
    screencount_long  BIGINT NOT NULL,
    PRIMARY KEY (run_id, subject, bucket_id)
);

CREATE TABLE IF NOT EXISTS screentime_sessions (
    run_id        UUID NOT NULL REFERENCES screentime_runs(id) ON DELETE CASCADE,
    subject       TEXT NOT NULL,
    session_start BIGINT NOT NULL,
    duration      BIGINT NOT NULL,
    class         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screentime_sessions_subject
    ON screentime_sessions (run_id, subject);

CREATE TABLE IF NOT EXISTS screentime_subjects (
    run_id                UUID NOT NULL REFERENCES screentime_runs(id) ON DELETE CASCADE,
    subject               TEXT NOT NULL,
    invalid_buckets       BIGINT[] NOT NULL,
    events                INTEGER NOT NULL,
    invalid_bucket_events INTEGER NOT NULL,
    twins                 INTEGER NOT NULL,
    broken_by_gap         INTEGER NOT NULL DEFAULT 0,
    sessions              INTEGER NOT NULL,
    dropped_sessions      INTEGER NOT NULL,
    unterminated_at_end   BOOLEAN NOT NULL,
    liveness_out_of_study INTEGER NOT NULL,
    PRIMARY KEY (run_id, subject)
);
`
