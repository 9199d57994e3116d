package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableUserHistory   = "user_history"
	tableScores        = "scores"
	tableAttemptEvents = "attempt_events"
)

var (
	// userHistoryColumns holds the columns for the "user_history" table.
	userHistoryColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString, Unique: true},
		{Name: "used_ids", Type: field.TypeString, Default: "[]"},
		{Name: "last_attempt", Type: field.TypeInt64, Default: 0},
		{Name: "version", Type: field.TypeInt64, Default: 0},
	}
	userHistoryTable = &schema.Table{
		Name:       tableUserHistory,
		Columns:    userHistoryColumns,
		PrimaryKey: []*schema.Column{userHistoryColumns[0]},
	}

	// scoresColumns holds the columns for the "scores" table.
	scoresColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "attempt_id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "test_type", Type: field.TypeString},
		{Name: "percentage", Type: field.TypeInt},
		{Name: "created_at", Type: field.TypeInt64},
	}
	scoresTable = &schema.Table{
		Name:       tableScores,
		Columns:    scoresColumns,
		PrimaryKey: []*schema.Column{scoresColumns[0]},
		Indexes: []*schema.Index{
			{Name: "score_test_type", Unique: false, Columns: []*schema.Column{scoresColumns[3]}},
		},
	}

	// attemptEventsColumns holds the columns for the "attempt_events" table.
	attemptEventsColumns = []*schema.Column{
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "kind", Type: field.TypeString},
		{Name: "attempt_id", Type: field.TypeString, Default: ""},
		{Name: "user_id", Type: field.TypeString},
		{Name: "test_type", Type: field.TypeString, Default: ""},
		{Name: "mode", Type: field.TypeString, Default: ""},
		{Name: "raw_score", Type: field.TypeInt, Default: 0},
		{Name: "total", Type: field.TypeInt, Default: 0},
		{Name: "percentage", Type: field.TypeInt, Default: 0},
		{Name: "performance_level", Type: field.TypeString, Default: ""},
		{Name: "question_ids", Type: field.TypeString, Default: "[]"},
		{Name: "note", Type: field.TypeString, Default: ""},
	}
	attemptEventsTable = &schema.Table{
		Name:       tableAttemptEvents,
		Columns:    attemptEventsColumns,
		PrimaryKey: []*schema.Column{attemptEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "attemptevent_user_id", Unique: false, Columns: []*schema.Column{attemptEventsColumns[4]}},
		},
	}

	// tables holds every table managed by auto-migration.
	tables = []*schema.Table{
		userHistoryTable,
		scoresTable,
		attemptEventsTable,
	}
)
