package data

import (
	"database/sql"
)

type Models struct {
	Teams     *TeamModel
	Bookmarks *BookmarkModel
	Chats     *ChatModel
}

func NewModels(db *sql.DB) *Models {
	return &Models{
		Teams:     &TeamModel{DB: db},
		Bookmarks: &BookmarkModel{DB: db},
		Chats:     &ChatModel{DB: db},
	}
}
