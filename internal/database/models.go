package database

import "time"

// Observation is one recorded sighting row of the seed dataset.
// Rows are read-only for the search engine; the importer is the only writer.
type Observation struct {
	ID               int64   `gorm:"primaryKey"`
	TaxonID          *int64  `gorm:"column:taxon_id"`
	ScientificName   string  `gorm:"column:scientific_name;size:255;not null;index"`
	VernacularName   *string `gorm:"column:vernacular_name;size:255;index"`
	Kingdom          string  `gorm:"column:kingdom;size:64;index"`
	SimpleGroup      string  `gorm:"column:simple_group;size:128"`
	AdvancedGroup    string  `gorm:"column:advanced_group;size:128"`
	DepartmentCode   int     `gorm:"column:department_code;index"`
	Commune          string  `gorm:"column:commune;size:255"`
	StatusCode       *string `gorm:"column:status_code;size:8"`
	ObservationCount int     `gorm:"column:observation_count;not null;default:1"`

	KingdomFold        string `gorm:"column:kingdom_fold;size:64"`
	SimpleGroupFold    string `gorm:"column:simple_group_fold;size:128"`
	CommuneFold        string `gorm:"column:commune_fold;size:255"`
	VernacularNameFold string `gorm:"column:vernacular_name_fold;size:255"`
	StatusCodeFold     string `gorm:"column:status_code_fold;size:8"`
}

func (Observation) TableName() string { return "observations" }

// SearchLog records one executed search for usage analytics.
type SearchLog struct {
	ID              int64     `gorm:"primaryKey"`
	ConversationID  string    `gorm:"column:conversation_id;size:64;index"`
	Filters         string    `gorm:"column:filters;type:text"`
	AggregationType string    `gorm:"column:aggregation_type;size:32"`
	TotalItems      int       `gorm:"column:total_items"`
	Page            int       `gorm:"column:page"`
	CreatedAt       time.Time `gorm:"column:created_at;index"`
}

func (SearchLog) TableName() string { return "search_logs" }

// SkippedQuestion records a chatbot stage the user declined to answer.
type SkippedQuestion struct {
	ID             int64     `gorm:"primaryKey"`
	ConversationID string    `gorm:"column:conversation_id;size:64;index"`
	QuestionID     string    `gorm:"column:question_id;size:32;index"`
	CreatedAt      time.Time `gorm:"column:created_at;index"`
}

func (SkippedQuestion) TableName() string { return "skipped_questions" }

// schemaMigration tracks applied migrations on every backend.
type schemaMigration struct {
	Version     int       `gorm:"primaryKey;autoIncrement:false"`
	Description string    `gorm:"size:255"`
	AppliedAt   time.Time `gorm:"column:applied_at"`
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// Stats holds aggregate counts for the status command.
type Stats struct {
	Observations     int64
	Species          int64
	Communes         int64
	Departments      int64
	SearchLogs       int64
	SkippedQuestions int64
}
