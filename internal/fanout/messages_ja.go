package fanout

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 日本語の文面カタログ。messages_en.go と鍵を同期すること。
func init() {
	lang := language.Japanese

	message.SetString(lang, "fanout.placeholder.user", "不明なユーザー")
	message.SetString(lang, "fanout.placeholder.reference", "不明")

	message.SetString(lang, "fanout.status.todo", "未着手")
	message.SetString(lang, "fanout.status.in_progress", "進行中")
	message.SetString(lang, "fanout.status.done", "完了")

	message.SetString(lang, "fanout.message.created",
		"%sが新しいタスク「%s」（顧客「%s」・商談「%s」）を%sに割り当てました。")
	message.SetString(lang, "fanout.message.created_self",
		"%sが新しいタスク「%s」（顧客「%s」・商談「%s」）を作成し、自身の担当としました。")
	message.SetString(lang, "fanout.message.created_delegated",
		"あなたのタスク「%s」（顧客「%s」・商談「%s」）が%sに割り当てられました。")
	message.SetString(lang, "fanout.message.status_changed",
		"%sがタスク「%s」（顧客「%s」・商談「%s」）の状態を「%s」から「%s」に変更しました。")
	message.SetString(lang, "fanout.message.reassigned",
		"%sがタスク「%s」（顧客「%s」・商談「%s」）の担当者を「%s」から「%s」に変更しました。")
	message.SetString(lang, "fanout.message.generic_update",
		"%sがタスク「%s」（顧客「%s」・商談「%s」）を更新しました。")
	message.SetString(lang, "fanout.message.deleted",
		"%sがタスク「%s」（顧客「%s」・商談「%s」）を削除しました。")
}
