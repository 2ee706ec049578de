package fanout

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// supportedLanguages はComposerが文面を持つ言語。先頭がフォールバック先となる。
var supportedLanguages = []language.Tag{
	language.English,
	language.Japanese,
}

// languageMatcher は要求された言語をsupportedLanguagesのいずれかに解決する。
var languageMatcher = language.NewMatcher(supportedLanguages)

// MessageContext は文面の組み立てに必要な表示名のセット。
// 表示名が解決できなかったフィールドは空文字列のままでよく、
// Composerが言語ごとのプレースホルダー文字列に置き換える。
type MessageContext struct {
	// ActorName は変更を行ったユーザーの表示名。
	ActorName string
	// Title はタスクのタイトル。
	Title string
	// CustomerName は関連する顧客の表示名。
	CustomerName string
	// DealName は関連する商談の表示名。
	DealName string
	// AssigneeName は担当者の表示名。作成イベントで使用する。
	AssigneeName string
	// FromName は変更前の担当者の表示名。担当者変更イベントで使用する。
	FromName string
	// ToName は変更後の担当者の表示名。担当者変更イベントで使用する。
	ToName string
	// SelfAssigned はアクター自身が担当者である作成イベントかどうか。
	SelfAssigned bool
}

// Composer は変更分類と表示名から人間可読な通知文面を組み立てる。
type Composer struct {
	// printer は言語カタログに基づくメッセージプリンタ。
	printer *message.Printer
}

// NewComposer は指定された言語のComposerを生成する。
// 未対応の言語はsupportedLanguagesの最も近い言語（最終的には英語）に解決される。
func NewComposer(lang language.Tag) *Composer {
	tag, _, _ := languageMatcher.Match(lang)
	return &Composer{printer: message.NewPrinter(tag)}
}

// Compose は変更分類に対応するテンプレートで通知文面を組み立てる。
// 表示名の解決失敗は文面の組み立てを妨げない。空の表示名はプレースホルダーに置き換える。
func (c *Composer) Compose(change Change, mctx MessageContext) string {
	actor := c.orUserPlaceholder(mctx.ActorName)
	customer := c.orReferencePlaceholder(mctx.CustomerName)
	deal := c.orReferencePlaceholder(mctx.DealName)

	switch change.Kind {
	case KindCreated:
		if mctx.SelfAssigned {
			return c.printer.Sprintf("fanout.message.created_self", actor, mctx.Title, customer, deal)
		}
		return c.printer.Sprintf("fanout.message.created", actor, mctx.Title, customer, deal, c.orUserPlaceholder(mctx.AssigneeName))
	case KindStatusChanged:
		return c.printer.Sprintf("fanout.message.status_changed",
			actor, mctx.Title, customer, deal, c.StatusLabel(change.FromStatus), c.StatusLabel(change.ToStatus))
	case KindReassigned:
		return c.printer.Sprintf("fanout.message.reassigned",
			actor, mctx.Title, customer, deal, c.orUserPlaceholder(mctx.FromName), c.orUserPlaceholder(mctx.ToName))
	case KindDeleted:
		return c.printer.Sprintf("fanout.message.deleted", actor, mctx.Title, customer, deal)
	default:
		return c.printer.Sprintf("fanout.message.generic_update", actor, mctx.Title, customer, deal)
	}
}

// ComposeDelegated は作成イベントにおいて作成者（委任した側）へ送る文面を組み立てる。
// 担当者へ送る文面とは異なる文言を使う。
func (c *Composer) ComposeDelegated(mctx MessageContext) string {
	return c.printer.Sprintf("fanout.message.created_delegated",
		mctx.Title, c.orReferencePlaceholder(mctx.CustomerName), c.orReferencePlaceholder(mctx.DealName),
		c.orUserPlaceholder(mctx.AssigneeName))
}

// StatusLabel は進行状態を言語ごとのラベルに変換する。
// 対応表は全域であり、未知の値はその生の文字列にフォールバックする。
func (c *Composer) StatusLabel(s Status) string {
	switch s {
	case StatusTodo:
		return c.printer.Sprintf("fanout.status.todo")
	case StatusInProgress:
		return c.printer.Sprintf("fanout.status.in_progress")
	case StatusDone:
		return c.printer.Sprintf("fanout.status.done")
	}
	return string(s)
}

// orUserPlaceholder は空のユーザー表示名をプレースホルダーに置き換える。
func (c *Composer) orUserPlaceholder(name string) string {
	if name == "" {
		return c.printer.Sprintf("fanout.placeholder.user")
	}
	return name
}

// orReferencePlaceholder は空の顧客・商談名をプレースホルダーに置き換える。
func (c *Composer) orReferencePlaceholder(name string) string {
	if name == "" {
		return c.printer.Sprintf("fanout.placeholder.reference")
	}
	return name
}
