package ipsum

// Category is a row of the types table.
type Category struct {
	TypeID int    `gorm:"column:type_id;primaryKey"`
	Name   string `gorm:"column:name;uniqueIndex;not null"`
}

func (Category) TableName() string { return "types" }

// Word is a row of the words table.
type Word struct {
	WordID int    `gorm:"column:word_id;primaryKey;autoIncrement"`
	Text   string `gorm:"column:text;not null"`
	TypeID int    `gorm:"column:type_id;index;not null"`
}

func (Word) TableName() string { return "words" }

// Category names the generator selects by.
const (
	CategorySpice = "spice"
	CategoryWyrd  = "wyrd"
)
