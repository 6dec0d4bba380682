package models

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// StoredTimeSeries is the persisted header of an exported time series
type StoredTimeSeries struct {
	TSID        string         `db:"tsid" json:"tsid"`
	UniqueID    string         `db:"unique_id" json:"uniqueId"`
	Description string         `db:"description" json:"description"`
	Units       string         `db:"units" json:"units"`
	DataAPI     string         `db:"data_api" json:"dataApi"`
	PeriodStart time.Time      `db:"period_start" json:"periodStart"`
	PeriodEnd   time.Time      `db:"period_end" json:"periodEnd"`
	ValueCount  int            `db:"value_count" json:"valueCount"`
	Properties  types.JSONText `db:"properties" json:"properties"`
	ExportedAt  time.Time      `db:"exported_at" json:"exportedAt"`
}

// StoredValue is one persisted point; a missing value is stored as NULL
type StoredValue struct {
	TSID       string          `db:"tsid" json:"-"`
	ObservedAt time.Time       `db:"observed_at" json:"time"`
	Value      sql.NullFloat64 `db:"value" json:"-"`
}

// ExportSummary is returned after a series has been written
type ExportSummary struct {
	TSID        string    `json:"tsid"`
	Values      int       `json:"values"`
	Missing     int       `json:"missing"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	ExportedAt  time.Time `json:"exportedAt"`
}
