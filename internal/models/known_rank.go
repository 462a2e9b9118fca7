package models

// KnownRank is a rank value the queue accepts. Rows are added from the
// configured rank list at migration and never removed: retained queue
// entries keep referencing ranks that were later dropped from the config.
type KnownRank struct {
	Name string `gorm:"primaryKey;type:varchar(32)" json:"name"`
}

// TableName implements the GORM tabler interface.
func (KnownRank) TableName() string { return "known_ranks" }
