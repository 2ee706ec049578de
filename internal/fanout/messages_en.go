package fanout

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 英語の文面カタログ。messages_ja.go と鍵を同期すること。
func init() {
	lang := language.English

	message.SetString(lang, "fanout.placeholder.user", "unknown user")
	message.SetString(lang, "fanout.placeholder.reference", "unknown")

	message.SetString(lang, "fanout.status.todo", "not started")
	message.SetString(lang, "fanout.status.in_progress", "in progress")
	message.SetString(lang, "fanout.status.done", "done")

	message.SetString(lang, "fanout.message.created",
		"%s assigned a new task '%s' (customer '%s', deal '%s') to %s.")
	message.SetString(lang, "fanout.message.created_self",
		"%s created a new task '%s' (customer '%s', deal '%s') and assigned it to themselves.")
	message.SetString(lang, "fanout.message.created_delegated",
		"Your task '%s' (customer '%s', deal '%s') was assigned to %s.")
	message.SetString(lang, "fanout.message.status_changed",
		"%s changed the status of task '%s' (customer '%s', deal '%s') from '%s' to '%s'.")
	message.SetString(lang, "fanout.message.reassigned",
		"%s reassigned task '%s' (customer '%s', deal '%s') from '%s' to '%s'.")
	message.SetString(lang, "fanout.message.generic_update",
		"%s updated task '%s' (customer '%s', deal '%s').")
	message.SetString(lang, "fanout.message.deleted",
		"%s deleted task '%s' (customer '%s', deal '%s').")
}
