package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	ActionEvent() IActionEvent
}

type Repo struct {
	journalDB *gorm.DB
}

func NewRepo(journalDB *gorm.DB) IRepo {
	return &Repo{
		journalDB: journalDB,
	}
}

func (r *Repo) ActionEvent() IActionEvent {
	return NewActionEventSQLRepo(r.journalDB)
}
