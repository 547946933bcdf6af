package model

// Notice is the user-facing error banner state. The zero value is no error.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeLoadFailed
	NoticeEmptyTitle
	NoticeAddFailed
	NoticeDeleteFailed
	NoticePartialDeleteFailed
	NoticeClearFailed
)

var noticeText = map[Notice]string{
	NoticeLoadFailed:          "Unable to load todos",
	NoticeEmptyTitle:          "Title should not be empty",
	NoticeAddFailed:           "Unable to add a todo",
	NoticeDeleteFailed:        "Unable to delete a todo",
	NoticePartialDeleteFailed: "Unable to delete some todos",
	NoticeClearFailed:         "Unable to clear completed todos",
}

// String returns the banner message, or "" for NoticeNone.
func (n Notice) String() string { return noticeText[n] }

// Active reports whether a banner should be shown.
func (n Notice) Active() bool { return n != NoticeNone }
