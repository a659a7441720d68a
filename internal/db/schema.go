package db

// SchemaSQL defines the tables of the SurrealDB workspace store and the
// capture history.
const SchemaSQL = `
    -- ==========================================================================
    -- WORKSPACE RECORDS (one table for every collection)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS workspace_record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS collection ON workspace_record TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON workspace_record TYPE string;
    DEFINE FIELD IF NOT EXISTS title_field ON workspace_record TYPE string;
    DEFINE FIELD IF NOT EXISTS properties ON workspace_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS content ON workspace_record TYPE array<object> FLEXIBLE DEFAULT [];
    -- Note: Must REMOVE then DEFINE to ensure FLEXIBLE is set (IF NOT EXISTS won't update existing field)
    REMOVE FIELD IF EXISTS content.* ON workspace_record;
    DEFINE FIELD content.* ON workspace_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON workspace_record TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON workspace_record TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS workspace_record_title ON workspace_record FIELDS collection, title;
    DEFINE INDEX IF NOT EXISTS workspace_record_created ON workspace_record FIELDS collection, created;

    -- ==========================================================================
    -- RECORDING TABLE (one row per pipeline run)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS recording SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS category ON recording TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS body ON recording TYPE string;
    DEFINE FIELD IF NOT EXISTS summary ON recording TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON recording TYPE string ASSERT $value IN ["processing", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS stage ON recording TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS error ON recording TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS activities_count ON recording TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created_at ON recording TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS recording_created ON recording FIELDS created_at;
    DEFINE INDEX IF NOT EXISTS recording_status ON recording FIELDS status;

    -- ==========================================================================
    -- ACTIVITY TABLE (one row per store side effect of a run)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS activity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS recording ON activity TYPE record<recording>;
    DEFINE FIELD IF NOT EXISTS action_type ON activity TYPE string;
    DEFINE FIELD IF NOT EXISTS page_id ON activity TYPE string;
    DEFINE FIELD IF NOT EXISTS collection ON activity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS action ON activity TYPE string;
    DEFINE FIELD IF NOT EXISTS page_url ON activity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON activity TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS activity_recording ON activity FIELDS recording;
`
