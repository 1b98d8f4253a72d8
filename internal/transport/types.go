// Package transport defines the chat-platform-neutral types exchanged
// between the adapter and the command router.
package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	LanguageCode string
	Text         string
	Document     *Document
	Location     *Location
}

// Document is an uploaded file attachment (the cookie export).
type Document struct {
	FileID   string
	FileName string
	Size     int64
}

type Location struct {
	Lat  float64
	Long float64
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string) error
	DownloadDocument(ctx context.Context, fileID string) ([]byte, error)

	// UpdateMenuCommands sets the platform command menu for one language
	// ("" for the default list).
	UpdateMenuCommands(ctx context.Context, languageCode string, cmds []BotCommand) error
}
