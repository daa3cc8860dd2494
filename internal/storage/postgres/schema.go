package postgres

// Schema применяется мигратором как единый идемпотентный скрипт.
// Vector-колонки обязаны совпадать по ширине с константами в models.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS users (
    user_id          UUID PRIMARY KEY,
    external_auth_id TEXT UNIQUE,
    email            TEXT NOT NULL,
    email_verified   BOOLEAN NOT NULL DEFAULT FALSE,
    tier             TEXT NOT NULL DEFAULT 'free',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_uq ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS videos (
    video_id    UUID PRIMARY KEY,
    user_id     UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    storage_key VARCHAR(512) NOT NULL,
    mime_type   VARCHAR(127) NOT NULL,
    size_bytes  BIGINT NOT NULL CHECK (size_bytes > 0 AND size_bytes <= 1073741824),
    title       TEXT,
    description TEXT,
    duration_s  DOUBLE PRECISION CHECK (duration_s IS NULL OR duration_s <= 600),
    state       TEXT NOT NULL DEFAULT 'uploading',
    error_text  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    indexed_at  TIMESTAMPTZ,
    CHECK ((state = 'indexed') = (indexed_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS videos_user_idx ON videos (user_id);
CREATE INDEX IF NOT EXISTS videos_state_idx ON videos (state);
CREATE INDEX IF NOT EXISTS videos_list_idx ON videos (user_id, created_at DESC, video_id DESC);

CREATE TABLE IF NOT EXISTS scenes (
    scene_id    UUID PRIMARY KEY,
    video_id    UUID NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
    start_s     DOUBLE PRECISION NOT NULL CHECK (start_s >= 0),
    end_s       DOUBLE PRECISION NOT NULL,
    transcript  TEXT NOT NULL DEFAULT '',
    tsv         TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', transcript)) STORED,
    text_vec    VECTOR(1024),
    image_vec   VECTOR(1152),
    vision_tags JSONB,
    sidecar_key VARCHAR(512),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (end_s > start_s)
);

CREATE INDEX IF NOT EXISTS scenes_video_idx ON scenes (video_id);
CREATE INDEX IF NOT EXISTS scenes_tsv_idx ON scenes USING GIN (tsv);
CREATE INDEX IF NOT EXISTS scenes_text_vec_idx ON scenes USING hnsw (text_vec vector_cosine_ops);
CREATE INDEX IF NOT EXISTS scenes_image_vec_idx ON scenes USING hnsw (image_vec vector_cosine_ops);

CREATE TABLE IF NOT EXISTS jobs (
    job_id      UUID PRIMARY KEY,
    video_id    UUID NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
    stage       TEXT NOT NULL,
    state       TEXT NOT NULL DEFAULT 'pending',
    progress    INT NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
    error_text  TEXT,
    started_at  TIMESTAMPTZ,
    finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS jobs_video_idx ON jobs (video_id);
-- не более одной открытой джобы на пару (video_id, stage)
CREATE UNIQUE INDEX IF NOT EXISTS jobs_one_open_uq ON jobs (video_id, stage)
    WHERE state IN ('pending', 'running');

CREATE TABLE IF NOT EXISTS face_profiles (
    face_profile_id UUID PRIMARY KEY,
    user_id         UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    photo_key       VARCHAR(512) NOT NULL,
    face_vec        VECTOR(512),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS face_profiles_user_idx ON face_profiles (user_id);

CREATE TABLE IF NOT EXISTS outbox (
    id           BIGSERIAL PRIMARY KEY,
    event_id     TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    aggregate_id TEXT NOT NULL,
    payload      JSONB NOT NULL,
    occurred_at  TIMESTAMPTZ NOT NULL,
    processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE processed_at IS NULL;
`
